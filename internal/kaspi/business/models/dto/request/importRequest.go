package request

// ImportItem — одна карточка в партии выгрузки.
type ImportItem struct {
	SKU         string                 `json:"sku"`
	Title       string                 `json:"title"`
	Brand       string                 `json:"brand"`
	Category    string                 `json:"category"`
	Description string                 `json:"description,omitempty"`
	Price       int64                  `json:"price"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	Images      []string               `json:"images,omitempty"`
}

// ImportRequest — тело запроса отправки партии карточек.
type ImportRequest struct {
	Items []ImportItem `json:"items"`
}
