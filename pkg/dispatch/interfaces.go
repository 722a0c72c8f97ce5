package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// Adapter defines the contract for a component that delivers one channel's
// payload to its provider (SMTP, FCM, Twilio, ...).
type Adapter interface {
	// Send attempts delivery once. Failures should be returned as
	// *ProviderError when the provider supplied a classifier.
	Send(ctx context.Context, payload notification.ChannelPayload) (*notification.ProviderResult, error)
}

// AdapterFunc lets a plain function satisfy Adapter.
type AdapterFunc func(ctx context.Context, payload notification.ChannelPayload) (*notification.ProviderResult, error)

func (f AdapterFunc) Send(ctx context.Context, payload notification.ChannelPayload) (*notification.ProviderResult, error) {
	return f(ctx, payload)
}

// WhatsAppSender is the direct, non-aggregated WhatsApp operation.
type WhatsAppSender interface {
	// Send returns the provider's message id.
	Send(ctx context.Context, payload notification.WhatsAppPayload) (string, error)
}

// TelegramSender is the direct, non-aggregated Telegram operation.
type TelegramSender interface {
	Send(ctx context.Context, payload notification.TelegramPayload) (*notification.ProviderResult, error)
}

// HistoryStore persists the outcome of every fan-out channel attempt.
type HistoryStore interface {
	// Record stores a single entry.
	Record(ctx context.Context, rec notification.NotificationRecord) error

	// List returns the most recent entries, newest first, up to limit.
	List(ctx context.Context, limit int) ([]notification.NotificationRecord, error)
}
