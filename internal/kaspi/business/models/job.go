package models

import "time"

// JobStatus — результат асинхронного задания выгрузки.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobSuccess JobStatus = "success"
	// JobPartial: часть позиций принята, часть отклонена. Отдельный статус,
	// не сводится к success/failed.
	JobPartial JobStatus = "partial"
	JobFailed  JobStatus = "failed"
)

// ItemError — ошибка по одной позиции в задании выгрузки.
type ItemError struct {
	SKU     string `json:"sku"`
	Message string `json:"message"`
}

// UploadJob — одна асинхронная отправка партии карточек на маркетплейс.
type UploadJob struct {
	ID           string      `json:"id"`
	ProductIDs   []int64     `json:"product_ids"`
	Status       JobStatus   `json:"status"`
	ItemErrors   []ItemError `json:"item_errors,omitempty"`
	SubmittedAt  time.Time   `json:"submitted_at"`
	LastPolledAt time.Time   `json:"last_polled_at"`
}

// ErrorFor возвращает ошибку позиции по её SKU, если маркетплейс её отклонил.
func (j *UploadJob) ErrorFor(sku string) (ItemError, bool) {
	for _, e := range j.ItemErrors {
		if e.SKU == sku {
			return e, true
		}
	}
	return ItemError{}, false
}
