package service

import (
	"html"
	"regexp"
	"strings"
)

type ITextService interface {
	ClearAndReduce(input string, length int) string
	RemoveAllTags(input string) string
	RemoveLinks(input string) string
}

type TextService struct{}

func NewTextService() *TextService {
	return &TextService{}
}

var (
	tagsRe    = regexp.MustCompile(`<[^>]*>`)
	linksRe   = regexp.MustCompile(`https?://[^\s]+`)
	symbolsRe = regexp.MustCompile(`[(),."'|/\-+&]`)
	spacesRe  = regexp.MustCompile(`\s+`)
)

func (ts *TextService) RemoveTags(input string) string {
	return tagsRe.ReplaceAllString(html.UnescapeString(input), "")
}

func (ts *TextService) RemoveSpecialChars(input string) string {
	var builder strings.Builder
	for _, r := range input {
		if !strings.ContainsRune("•@#$%^&*_[]{}|;'\"<>/", r) {
			builder.WriteString(string(r))
		}
	}
	return builder.String()
}

func (ts *TextService) RemoveAllTags(input string) string {
	return ts.RemoveSpecialChars(ts.RemoveTags(input))
}

func (ts *TextService) RemoveLinks(input string) string {
	return linksRe.ReplaceAllString(input, "")
}

// ClearAndReduce чистит текст карточки и умно сокращает до length символов.
func (ts *TextService) ClearAndReduce(input string, length int) string {
	// Ссылки раньше спецсимволов: чистка "/" ломает распознавание URL.
	cleaned := ts.RemoveLinks(input)
	cleaned = ts.RemoveAllTags(cleaned)
	cleaned = strings.TrimSpace(spacesRe.ReplaceAllString(cleaned, " "))
	if len(cleaned) > length {
		cleaned = symbolsRe.ReplaceAllString(cleaned, "")
	}
	return ts.reduceToLength(cleaned, length)
}

func (ts *TextService) reduceToLength(input string, length int) string {
	var builder strings.Builder
	words := strings.Split(input, " ")
	totalLength := 0

	for i, word := range words {
		if totalLength+len(word) > length {
			break
		}

		if i > 0 {
			builder.WriteString(" ")
			totalLength++
		}

		builder.WriteString(word)
		totalLength += len(word)
	}

	return builder.String()
}
