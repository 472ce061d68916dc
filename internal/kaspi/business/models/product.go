package models

import (
	"fmt"
	"time"
)

// ConveyorStatus — состояние товара на конвейере выгрузки.
// Значения зеркалят enum conveyor_status в PostgreSQL.
type ConveyorStatus string

const (
	StatusNew          ConveyorStatus = "new"
	StatusMsSynced     ConveyorStatus = "ms_synced"
	StatusStockSynced  ConveyorStatus = "stock_synced"
	StatusListingBuilt ConveyorStatus = "listing_built"
	StatusUploaded     ConveyorStatus = "uploaded"
	StatusConfirmed    ConveyorStatus = "confirmed"
	StatusError        ConveyorStatus = "error"
)

func ParseConveyorStatus(s string) (ConveyorStatus, error) {
	st := ConveyorStatus(s)
	switch st {
	case StatusNew, StatusMsSynced, StatusStockSynced, StatusListingBuilt,
		StatusUploaded, StatusConfirmed, StatusError:
		return st, nil
	}
	return "", fmt.Errorf("unknown conveyor status %q", s)
}

// Ключи служебных подполей в specs.
const (
	SpecKaspiSKU      = "kaspi_sku"
	SpecKaspiUploadID = "kaspi_upload_id"
	SpecIsInFeed      = "is_in_feed"
	SpecMsID          = "ms_id"
)

// LogEntry — одна запись журнала конвейера.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Step    string    `json:"step"`
	Message string    `json:"message"`
}

// ProductRecord — каноническая запись товара, одна строка на позицию
// исходного маркетплейса.
type ProductRecord struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	Brand     string            `json:"brand"`
	PriceBase int64             `json:"price_base"`
	Specs     map[string]string `json:"specs"`

	ConveyorStatus ConveyorStatus `json:"conveyor_status"`
	ConveyorLog    []LogEntry     `json:"conveyor_log"`

	MsCreated    bool `json:"ms_created"`
	StockAdded   bool `json:"stock_added"`
	KaspiCreated bool `json:"kaspi_created"`

	RetryCount  int        `json:"retry_count"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	Retired     bool       `json:"retired"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Spec возвращает служебное подполе specs или "" если его нет.
func (p *ProductRecord) Spec(key string) string {
	if p.Specs == nil {
		return ""
	}
	return p.Specs[key]
}

// UploadID — сохранённый идентификатор задания выгрузки.
// Пустая строка и "unknown" означают, что задания нет.
func (p *ProductRecord) UploadID() string {
	id := p.Spec(SpecKaspiUploadID)
	if id == "unknown" {
		return ""
	}
	return id
}

// EligibleForUpload: товар можно выгружать только после синхронизации
// с учётной системой и остатками.
func (p *ProductRecord) EligibleForUpload() bool {
	return p.MsCreated && p.StockAdded
}
