package mapping

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Rule — одно правило подбора категории. Правила проверяются сверху вниз,
// выигрывает первое совпавшее: порядок — часть контракта, нижние правила
// намеренно более общие.
type Rule struct {
	Keywords     []string `yaml:"keywords"`
	CategoryCode string   `yaml:"category_code"`
	ListingType  string   `yaml:"listing_type"`
}

// CategoryMapper — чистая детерминированная функция: название товара →
// (код таксономии, тип карточки). Без внешних вызовов, безопасен для
// конкурентного использования.
type CategoryMapper struct {
	rules       []Rule
	defaultCode string
	defaultType string
	lower       cases.Caser
}

func NewCategoryMapper(rules []Rule) *CategoryMapper {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &CategoryMapper{
		rules:       rules,
		defaultCode: DefaultCategoryCode,
		defaultType: DefaultListingType,
		lower:       cases.Lower(language.Russian),
	}
}

const (
	DefaultCategoryCode = "Master - Other goods"
	DefaultListingType  = "Товары для дома"
)

// DetectCategory всегда возвращает результат: если ни одно ключевое слово
// не совпало, отдаёт категорию по умолчанию.
func (m *CategoryMapper) DetectCategory(name string) (categoryCode, listingType string) {
	normalized := m.normalize(name)

	for _, rule := range m.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(normalized, kw) {
				return rule.CategoryCode, rule.ListingType
			}
		}
	}
	return m.defaultCode, m.defaultType
}

// normalize приводит смешанный кириллично-латинский ввод к нижнему регистру
// NFC и транслитерирует латинские вкрапления в кириллицу, чтобы
// "игрushka" совпадало с ключом "игрушка".
func (m *CategoryMapper) normalize(s string) string {
	return TransliterateLatin(m.lower.String(norm.NFC.String(s)))
}

// Диграфы раньше одиночных букв, иначе "sh" распадётся на "сх".
var latinDigraphs = []struct{ lat, cyr string }{
	{"shch", "щ"}, {"sch", "щ"}, {"sh", "ш"}, {"ch", "ч"}, {"zh", "ж"},
	{"kh", "х"}, {"ts", "ц"}, {"yu", "ю"}, {"ya", "я"}, {"yo", "ё"},
}

var latinSingles = map[rune]string{
	'a': "а", 'b': "б", 'v': "в", 'g': "г", 'd': "д", 'e': "е",
	'z': "з", 'i': "и", 'j': "й", 'k': "к", 'l': "л", 'm': "м",
	'n': "н", 'o': "о", 'p': "п", 'r': "р", 's': "с", 't': "т",
	'u': "у", 'f': "ф", 'h': "х", 'c': "к", 'y': "ы", 'x': "кс",
	'w': "в", 'q': "к",
}

// TransliterateLatin переводит латинские буквы строки в кириллицу.
// Строка ожидается уже в нижнем регистре.
func TransliterateLatin(s string) string {
	for _, d := range latinDigraphs {
		s = strings.ReplaceAll(s, d.lat, d.cyr)
	}
	var b strings.Builder
	for _, r := range s {
		if repl, ok := latinSingles[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
