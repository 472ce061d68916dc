package attributes

import (
	"context"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"kaspimarket_api/internal/kaspi/business/models"
	"kaspimarket_api/internal/kaspi/business/services/parse"
	"kaspimarket_api/pkg/logger"
)

// Resolver выводит значения атрибутов категории из карточки товара.
// Порядок вывода: явное значение в specs → эвристика по тексту →
// умолчание категории. Карточку не мутирует — это дело конвейера.
type Resolver struct {
	cache     *SchemaCache
	extractor *parse.AttributeExtractor
	defaults  map[string]map[string]string
	log       logger.Logger
	lower     cases.Caser
}

func NewResolver(cache *SchemaCache, extractor *parse.AttributeExtractor, defaults map[string]map[string]string, writer io.Writer) *Resolver {
	if defaults == nil {
		defaults = DefaultCategoryDefaults()
	}
	return &Resolver{
		cache:     cache,
		extractor: extractor,
		defaults:  defaults,
		log:       logger.NewLogger(writer, "[AttributeResolver]"),
		lower:     cases.Lower(language.Russian),
	}
}

// ResolveAttributes возвращает mapping код атрибута → значение.
// Возвращает SchemaFetchError, если маркетплейс недоступен, и
// MandatoryAttributeMissing, если обязательный атрибут не вывелся.
func (r *Resolver) ResolveAttributes(ctx context.Context, categoryCode string, product *models.ProductRecord) (map[string]string, error) {
	schema, err := r.cache.Schema(ctx, categoryCode)
	if err != nil {
		return nil, &SchemaFetchError{CategoryCode: categoryCode, Err: err}
	}

	resolved := make(map[string]string, len(schema.Attributes))
	text := product.Name
	if desc := product.Spec("description"); desc != "" {
		text += " " + desc
	}

	for _, attr := range schema.Attributes {
		value, found := r.derive(categoryCode, attr, product, text)

		if found && attr.Type == models.AttributeEnum {
			matched, err := r.matchEnum(ctx, categoryCode, attr.Code, value)
			if err != nil {
				return nil, &SchemaFetchError{CategoryCode: categoryCode, Err: err}
			}
			if matched == "" {
				// Кандидат не входит в допустимые значения — считаем
				// атрибут невыведенным.
				r.log.Log("category %s: attribute %s candidate %q not in allowed values", categoryCode, attr.Code, value)
				value, found = r.categoryDefault(categoryCode, attr.Code)
				if found {
					// Умолчание проходит ту же проверку: невалидное
					// умолчание не лучше невалидного кандидата.
					matched, err = r.matchEnum(ctx, categoryCode, attr.Code, value)
					if err != nil {
						return nil, &SchemaFetchError{CategoryCode: categoryCode, Err: err}
					}
					if matched == "" {
						found = false
					} else {
						value = matched
					}
				}
			} else {
				value = matched
			}
		}

		if !found {
			if attr.Mandatory {
				return nil, &MandatoryAttributeMissing{Code: attr.Code}
			}
			continue
		}
		resolved[attr.Code] = value
	}
	return resolved, nil
}

// derive пробует вывести значение атрибута в порядке приоритета.
func (r *Resolver) derive(categoryCode string, attr models.Attribute, product *models.ProductRecord, text string) (string, bool) {
	if v := product.Spec(attr.Code); v != "" {
		return v, true
	}
	if v, ok := r.extractor.Extract(attr.Code, text); ok {
		return v, true
	}
	return r.categoryDefault(categoryCode, attr.Code)
}

func (r *Resolver) categoryDefault(categoryCode, attrCode string) (string, bool) {
	if m, ok := r.defaults[categoryCode]; ok {
		if v, ok := m[attrCode]; ok {
			return v, true
		}
	}
	return "", false
}

// matchEnum ищет кандидата среди допустимых значений: точное совпадение
// после нормализации, без нечёткого поиска. Возвращает каноническое
// значение маркетплейса или "".
func (r *Resolver) matchEnum(ctx context.Context, categoryCode, attrCode, candidate string) (string, error) {
	allowed, err := r.cache.Values(ctx, categoryCode, attrCode)
	if err != nil {
		return "", err
	}

	want := r.normalize(candidate)
	for _, v := range allowed {
		if r.normalize(v) == want {
			return v, nil
		}
	}
	return "", nil
}

func (r *Resolver) normalize(s string) string {
	return strings.TrimSpace(r.lower.String(norm.NFC.String(s)))
}

// DefaultCategoryDefaults — явные умолчания атрибутов по категориям.
// Обязательный атрибут получает умолчание только если оно здесь названо.
func DefaultCategoryDefaults() map[string]map[string]string {
	return map[string]map[string]string{
		"Master - Soft toys": {
			"country":  "Китай",
			"material": "плюш",
		},
		"Master - Toys": {
			"country": "Китай",
		},
		"Master - Mugs": {
			"material":  "керамика",
			"volume_ml": "330",
		},
		"Master - Other goods": {
			"country": "Китай",
		},
	}
}
