package response

// ImportResponse — ответ на отправку партии: код асинхронного задания.
type ImportResponse struct {
	Code string `json:"code"`
}

// ImportStatusResponse — состояние задания выгрузки.
// Формат per-item ошибок сверен с живым API: total/errors счётчики плюс
// список отклонённых позиций.
type ImportStatusResponse struct {
	Code   string `json:"code"`
	Status string `json:"status"` // PENDING / FINISHED / FAILED
	Result struct {
		Total  int `json:"total"`
		Errors int `json:"errors"`
		Items  []struct {
			SKU     string `json:"sku"`
			Status  string `json:"status"`
			Message string `json:"errorMessage,omitempty"`
		} `json:"items,omitempty"`
	} `json:"result"`
}
