package parse_test

import (
	"regexp"
	"testing"

	"kaspimarket_api/internal/kaspi/business/services/parse"
)

func TestExtract_Color(t *testing.T) {
	e := parse.NewAttributeExtractor(nil)

	tests := []struct {
		text string
		want string
	}{
		{"Мягкая игрушка красный медведь", "красный"},
		{"Кружка синяя керамическая", "синий"},
		{"Футболка ЧЁРНАЯ хлопок", "чёрный"},
		{"Рюкзак тёмно-синий городской", "тёмно-синий"},
	}
	for _, tt := range tests {
		got, ok := e.Extract("color", tt.text)
		if !ok {
			t.Errorf("Extract(color, %q) found nothing, want %q", tt.text, tt.want)
			continue
		}
		if got != tt.want {
			t.Errorf("Extract(color, %q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

// "тёмно-синий" стоит выше "синий" в таблице: частный оттенок не должен
// схлопываться в базовый цвет.
func TestExtract_SpecificShadeBeforeBase(t *testing.T) {
	e := parse.NewAttributeExtractor(nil)

	got, ok := e.Extract("color", "Чехол темно-синий для смартфона")
	if !ok || got != "тёмно-синий" {
		t.Errorf("Extract(color) = %q, %v; want %q, true", got, ok, "тёмно-синий")
	}
}

func TestExtract_CaptureGroup(t *testing.T) {
	e := parse.NewAttributeExtractor(nil)

	got, ok := e.Extract("height_cm", "Мишка плюшевый, высота 40 см")
	if !ok || got != "40" {
		t.Errorf("Extract(height_cm) = %q, %v; want %q, true", got, ok, "40")
	}

	got, ok = e.Extract("age", "Конструктор для детей 6+")
	if !ok || got != "6" {
		t.Errorf("Extract(age) = %q, %v; want %q, true", got, ok, "6")
	}

	got, ok = e.Extract("age", "Игровой набор от 3 лет")
	if !ok || got != "3" {
		t.Errorf("Extract(age) = %q, %v; want %q, true", got, ok, "3")
	}
}

func TestExtract_NoMatch(t *testing.T) {
	e := parse.NewAttributeExtractor(nil)

	if got, ok := e.Extract("color", "Кружка керамическая 350 мл"); ok {
		t.Errorf("Extract(color) = %q, want no match", got)
	}
	if got, ok := e.Extract("nonexistent", "Мишка красный"); ok {
		t.Errorf("Extract(nonexistent) = %q, want no match", got)
	}
}

func TestExtract_MixedScriptInput(t *testing.T) {
	e := parse.NewAttributeExtractor(nil)

	// Латинские вкрапления нормализуются до сопоставления с таблицей.
	got, ok := e.Extract("material", "Мишка plyush 30 см")
	if !ok || got != "плюш" {
		t.Errorf("Extract(material) = %q, %v; want %q, true", got, ok, "плюш")
	}
}

func TestExtract_CustomRules(t *testing.T) {
	e := parse.NewAttributeExtractor([]parse.ExtractRule{
		{AttributeCode: "power_w", Pattern: regexp.MustCompile(`(\d{2,4})\s*вт`)},
	})

	got, ok := e.Extract("power_w", "Чайник электрический 2200 Вт")
	if !ok || got != "2200" {
		t.Errorf("Extract(power_w) = %q, %v; want %q, true", got, ok, "2200")
	}
}
