package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kaspimarket_api/pkg/logger"
)

// Sink — граница оповещений о фатальных сбоях конвейера.
type Sink interface {
	SendAlert(text string) bool
}

// TelegramSink шлёт оповещения в чат бота. Fire-and-forget: ошибка
// доставки логируется локально и не попадает в критический путь вызывающего.
type TelegramSink struct {
	botToken string
	chatID   string
	client   *http.Client
	log      logger.Logger
}

func NewTelegramSink(botToken, chatID string, writer io.Writer) *TelegramSink {
	return &TelegramSink{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      logger.NewLogger(writer, "[TelegramSink]"),
	}
}

func (s *TelegramSink) SendAlert(text string) bool {
	if s.botToken == "" || s.chatID == "" {
		s.log.Log("alert skipped, telegram is not configured: %s", text)
		return false
	}

	body, err := json.Marshal(map[string]string{
		"chat_id": s.chatID,
		"text":    text,
	})
	if err != nil {
		s.log.Log("failed to marshal alert: %v", err)
		return false
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)
	resp, err := s.client.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		s.log.Log("failed to send alert: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Log("alert rejected, status %d", resp.StatusCode)
		return false
	}
	return true
}

// Async оборачивает Sink так, что доставка уходит в отдельную горутину.
type Async struct {
	inner Sink
}

func NewAsync(inner Sink) *Async {
	return &Async{inner: inner}
}

func (a *Async) SendAlert(text string) bool {
	go a.inner.SendAlert(text)
	return true
}
