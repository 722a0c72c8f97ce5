// Package logsink provides channel backends that only log, for local
// development without provider credentials.
package logsink

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const providerName = "log"

// Adapter logs fan-out payloads and reports a synthetic success.
type Adapter struct {
	kind   notification.ChannelKind
	logger *slog.Logger
}

func NewAdapter(kind notification.ChannelKind, logger *slog.Logger) *Adapter {
	return &Adapter{kind: kind, logger: logger.With("component", "LogSink", "channel", kind)}
}

func (a *Adapter) Send(_ context.Context, payload notification.ChannelPayload) (*notification.ProviderResult, error) {
	id := uuid.NewString()
	a.logger.Info("Notification logged instead of delivered", "message_id", id, "payload", payload)
	return &notification.ProviderResult{Provider: providerName, MessageID: id, Status: "logged"}, nil
}

// WhatsApp logs direct WhatsApp messages.
type WhatsApp struct {
	logger *slog.Logger
}

func NewWhatsApp(logger *slog.Logger) *WhatsApp {
	return &WhatsApp{logger: logger.With("component", "LogSink", "channel", notification.ChannelWhatsApp)}
}

func (w *WhatsApp) Send(_ context.Context, payload notification.WhatsAppPayload) (string, error) {
	id := uuid.NewString()
	w.logger.Info("WhatsApp message logged instead of delivered", "message_id", id, "to", payload.To)
	return id, nil
}

// Telegram logs direct Telegram messages. It applies the same chat id
// validation as the Bot API client.
type Telegram struct {
	logger *slog.Logger
}

func NewTelegram(logger *slog.Logger) *Telegram {
	return &Telegram{logger: logger.With("component", "LogSink", "channel", notification.ChannelTelegram)}
}

func (t *Telegram) Send(_ context.Context, payload notification.TelegramPayload) (*notification.ProviderResult, error) {
	if strings.TrimSpace(payload.ChatID) == "" {
		return nil, &dispatch.ValidationError{Field: "chatId", Reason: "is required"}
	}
	id := uuid.NewString()
	t.logger.Info("Telegram message logged instead of delivered", "message_id", id, "chat_id", payload.ChatID)
	return &notification.ProviderResult{Provider: providerName, MessageID: id, Status: "logged"}, nil
}
