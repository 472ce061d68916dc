package clients

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Типизированные ошибки внешних API. Клиент не ретраит сам:
// политика повторов принадлежит конвейеру.

type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed: status %d: %s", e.StatusCode, e.Body)
}

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.Resource)
}

type RateLimitError struct {
	Body string
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded (429)"
}

type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: status %d: %s", e.StatusCode, e.Body)
}

// StatusError переводит не-2xx ответ в типизированную ошибку,
// сохраняя статус и тело для диагностики.
func StatusError(resource string, statusCode int, body string) error {
	switch {
	case statusCode == 401 || statusCode == 403:
		return &AuthError{StatusCode: statusCode, Body: body}
	case statusCode == 404:
		return &NotFoundError{Resource: resource}
	case statusCode == 429:
		return &RateLimitError{Body: body}
	default:
		return &RemoteError{StatusCode: statusCode, Body: body}
	}
}

// IsTransient: таймауты, 429 и 5xx можно повторять; остальное — нет.
func IsTransient(err error) bool {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
