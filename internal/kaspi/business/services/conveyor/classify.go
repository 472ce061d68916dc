package conveyor

import (
	"errors"
	"time"

	"kaspimarket_api/internal/kaspi/business/services/attributes"
	"kaspimarket_api/internal/kaspi/pkg/clients"
)

// ErrorClass определяет судьбу неудавшегося перехода.
type ErrorClass int

const (
	// Transient: таймаут, 429, 5xx — статус не меняется, товар уходит
	// на отложенный ретрай.
	Transient ErrorClass = iota
	// Permanent: нет обязательных данных, ошибки авторизации, прочие 4xx —
	// статус error, автоматических повторов нет.
	Permanent
)

// Classify относит ошибку перехода к transient или permanent.
func Classify(err error) ErrorClass {
	var perm *PermanentError
	if errors.As(err, &perm) {
		return Permanent
	}

	var missing *attributes.MandatoryAttributeMissing
	if errors.As(err, &missing) {
		return Permanent
	}

	var schemaErr *attributes.SchemaFetchError
	if errors.As(err, &schemaErr) {
		// Недоступность схемы наследует класс причины.
		if clients.IsTransient(schemaErr.Err) {
			return Transient
		}
		return Permanent
	}

	if clients.IsTransient(err) {
		return Transient
	}

	var authErr *clients.AuthError
	if errors.As(err, &authErr) {
		return Permanent
	}
	var notFound *clients.NotFoundError
	if errors.As(err, &notFound) {
		return Permanent
	}
	var remote *clients.RemoteError
	if errors.As(err, &remote) {
		// 5xx уже отсеян IsTransient: остались прочие 4xx.
		return Permanent
	}

	// Сетевые и прочие неопознанные сбои повторяемы.
	return Transient
}

// RetryDelay — экспоненциальная выдержка по числу уже сделанных попыток,
// с верхней границей.
func RetryDelay(attempts int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Minute
	}
	if max <= 0 {
		max = time.Hour
	}

	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
