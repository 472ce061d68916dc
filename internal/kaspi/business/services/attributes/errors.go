package attributes

import "fmt"

// SchemaFetchError: схему категории не удалось получить у маркетплейса.
type SchemaFetchError struct {
	CategoryCode string
	Err          error
}

func (e *SchemaFetchError) Error() string {
	return fmt.Sprintf("failed to fetch schema for category %q: %v", e.CategoryCode, e.Err)
}

func (e *SchemaFetchError) Unwrap() error {
	return e.Err
}

// MandatoryAttributeMissing: обязательный атрибут не вывелся ни из specs,
// ни из текста, ни из значения по умолчанию.
type MandatoryAttributeMissing struct {
	Code string
}

func (e *MandatoryAttributeMissing) Error() string {
	return fmt.Sprintf("mandatory attribute %q cannot be resolved", e.Code)
}
