package service_test

import (
	"testing"

	"kaspimarket_api/pkg/business/service"
)

func TestClearAndReduce_StripsMarkup(t *testing.T) {
	ts := service.NewTextService()

	got := ts.ClearAndReduce("<p>Мягкая игрушка</p> смотрите https://example.com/item", 200)
	want := "Мягкая игрушка смотрите"
	if got != want {
		t.Errorf("ClearAndReduce = %q, want %q", got, want)
	}
}

func TestClearAndReduce_CutsOnWordBoundary(t *testing.T) {
	ts := service.NewTextService()

	got := ts.ClearAndReduce("one two three four", 9)
	if got != "one two" {
		t.Errorf("ClearAndReduce = %q, want %q", got, "one two")
	}
}

func TestRemoveAllTags(t *testing.T) {
	ts := service.NewTextService()

	got := ts.RemoveAllTags("<b>Мишка</b> &amp; заяц")
	if got != "Мишка  заяц" {
		t.Errorf("RemoveAllTags = %q, want %q", got, "Мишка  заяц")
	}
}

func TestRemoveLinks(t *testing.T) {
	ts := service.NewTextService()

	got := ts.RemoveLinks("смотрите http://shop.kz/a и https://shop.kz/b тут")
	if got != "смотрите  и  тут" {
		t.Errorf("RemoveLinks = %q", got)
	}
}
