package parse

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"kaspimarket_api/internal/kaspi/business/services/mapping"
)

// ExtractRule — одно правило эвристического извлечения значения атрибута
// из текста карточки. Таблица проверяется сверху вниз, выигрывает первое
// совпадение по атрибуту: порядок правил — часть контракта.
type ExtractRule struct {
	AttributeCode string
	Pattern       *regexp.Regexp
	// Value подставляется как есть; если пуст, берётся capture group 1.
	Value string
}

// AttributeExtractor прогоняет текст по таблице правил.
type AttributeExtractor struct {
	rules []ExtractRule
	lower cases.Caser
}

func NewAttributeExtractor(rules []ExtractRule) *AttributeExtractor {
	if len(rules) == 0 {
		rules = DefaultExtractRules()
	}
	return &AttributeExtractor{
		rules: rules,
		lower: cases.Lower(language.Russian),
	}
}

// Extract ищет значение атрибута attributeCode в тексте.
func (e *AttributeExtractor) Extract(attributeCode, text string) (string, bool) {
	normalized := mapping.TransliterateLatin(e.lower.String(norm.NFC.String(text)))

	for _, rule := range e.rules {
		if rule.AttributeCode != attributeCode {
			continue
		}
		m := rule.Pattern.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		if rule.Value != "" {
			return rule.Value, true
		}
		if len(m) > 1 {
			return strings.TrimSpace(m[1]), true
		}
		return strings.TrimSpace(m[0]), true
	}
	return "", false
}

// DefaultExtractRules — встроенная таблица эвристик.
func DefaultExtractRules() []ExtractRule {
	return []ExtractRule{
		// Цвет: частные оттенки раньше базовых.
		{AttributeCode: "color", Pattern: regexp.MustCompile(`тёмно[- ]синий|темно[- ]синий`), Value: "тёмно-синий"},
		{AttributeCode: "color", Pattern: regexp.MustCompile(`красн\w*`), Value: "красный"},
		{AttributeCode: "color", Pattern: regexp.MustCompile(`син\w*`), Value: "синий"},
		{AttributeCode: "color", Pattern: regexp.MustCompile(`зел[её]н\w*`), Value: "зелёный"},
		{AttributeCode: "color", Pattern: regexp.MustCompile(`ч[её]рн\w*`), Value: "чёрный"},
		{AttributeCode: "color", Pattern: regexp.MustCompile(`бел\w*`), Value: "белый"},
		{AttributeCode: "color", Pattern: regexp.MustCompile(`роз\w*`), Value: "розовый"},
		{AttributeCode: "color", Pattern: regexp.MustCompile(`сер\w*`), Value: "серый"},
		{AttributeCode: "color", Pattern: regexp.MustCompile(`коричн\w*`), Value: "коричневый"},
		{AttributeCode: "color", Pattern: regexp.MustCompile(`беж\w*`), Value: "бежевый"},

		// Материал.
		{AttributeCode: "material", Pattern: regexp.MustCompile(`плюш\w*`), Value: "плюш"},
		{AttributeCode: "material", Pattern: regexp.MustCompile(`хлоп\w*|хлопков\w*`), Value: "хлопок"},
		{AttributeCode: "material", Pattern: regexp.MustCompile(`кож\w*`), Value: "кожа"},
		{AttributeCode: "material", Pattern: regexp.MustCompile(`пластик\w*`), Value: "пластик"},
		{AttributeCode: "material", Pattern: regexp.MustCompile(`метал\w*`), Value: "металл"},
		{AttributeCode: "material", Pattern: regexp.MustCompile(`керамик\w*|керамич\w*`), Value: "керамика"},
		{AttributeCode: "material", Pattern: regexp.MustCompile(`текстил\w*|ткан\w*`), Value: "текстиль"},

		// Размер/высота в сантиметрах: "40 см", "высота 25см".
		{AttributeCode: "height_cm", Pattern: regexp.MustCompile(`(\d{1,3})\s*см`)},

		// Возрастная маркировка: "3+", "от 3 лет".
		{AttributeCode: "age", Pattern: regexp.MustCompile(`(\d{1,2})\s*\+`)},
		{AttributeCode: "age", Pattern: regexp.MustCompile(`от\s+(\d{1,2})\s+лет`)},

		// Объём: "350 мл", "0.5 л".
		{AttributeCode: "volume_ml", Pattern: regexp.MustCompile(`(\d{2,4})\s*мл`)},
	}
}
