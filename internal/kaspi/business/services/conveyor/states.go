// Package conveyor двигает товар по ступеням выгрузки:
//
//	new ──► ms_synced ──► stock_synced ──► listing_built ──► uploaded ──► confirmed
//	 │          │               │                │               │
//	 └──────────┴───────────────┴────────────────┴───────────────┴──► error
//
// confirmed — терминальное состояние; error — поглощающее, выход из него
// только операторским сбросом. Переходы идемпотентны: повторный вход на
// uploaded опрашивает сохранённое задание, а не отправляет заново.
package conveyor

import (
	"kaspimarket_api/internal/kaspi/business/models"
)

// Имена шагов для журнала и метрик.
const (
	StepMsSync    = "ms_sync"
	StepStockSync = "stock_sync"
	StepBuild     = "listing_build"
	StepUpload    = "upload"
	StepPoll      = "status_poll"
)

// validTransitions перечисляет допустимые пары (из → в).
var validTransitions = map[models.ConveyorStatus][]models.ConveyorStatus{
	models.StatusNew:          {models.StatusMsSynced, models.StatusError},
	models.StatusMsSynced:     {models.StatusStockSynced, models.StatusError},
	models.StatusStockSynced:  {models.StatusListingBuilt, models.StatusError},
	models.StatusListingBuilt: {models.StatusUploaded, models.StatusError},
	models.StatusUploaded:     {models.StatusConfirmed, models.StatusError},
	// confirmed терминален, из error выводит только оператор.
}

// IsTransitionAllowed сообщает, разрешён ли переход from → to.
func IsTransitionAllowed(from, to models.ConveyorStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal: дальше конвейер товар не двигает.
func IsTerminal(s models.ConveyorStatus) bool {
	return s == models.StatusConfirmed || s == models.StatusError
}

// stepFor возвращает имя шага, выполняемого из данного состояния.
func stepFor(s models.ConveyorStatus) string {
	switch s {
	case models.StatusNew:
		return StepMsSync
	case models.StatusMsSynced:
		return StepStockSync
	case models.StatusStockSynced:
		return StepBuild
	case models.StatusListingBuilt:
		return StepUpload
	case models.StatusUploaded:
		return StepPoll
	}
	return ""
}
