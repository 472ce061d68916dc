package response

// CategoryResponse — список категорий таксономии маркетплейса.
type CategoryResponse struct {
	Data []struct {
		Code  string `json:"code"`
		Title string `json:"title"`
	} `json:"data"`
}

// AttributeSchemaResponse — схема атрибутов одной категории.
type AttributeSchemaResponse struct {
	Data []struct {
		Code        string `json:"code"`
		Type        string `json:"type"`
		Mandatory   bool   `json:"mandatory"`
		MultiValued bool   `json:"multiValued"`
	} `json:"data"`
}

// AttributeValuesResponse — допустимые значения enum-атрибута.
type AttributeValuesResponse struct {
	Data []struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"data"`
}
