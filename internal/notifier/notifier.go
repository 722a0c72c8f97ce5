// Package notifier is the application layer of the gateway. It runs the
// fan-out dispatch, records its outcome in the history store and exposes
// the direct single-channel operations.
package notifier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const (
	// DefaultHistoryLimit is used when History is asked for no particular size.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps a single History call.
	MaxHistoryLimit = 500
)

// ErrHistoryDisabled is returned by History when no store is configured.
var ErrHistoryDisabled = errors.New("notification history is not enabled")

// Dispatcher is satisfied by *fanout.Coordinator.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *notification.NotificationRequest) []notification.ResponseEnvelope
}

// Origin describes who submitted a notification and through which path.
type Origin struct {
	RequestedBy string
	Source      notification.Source
}

// Service wires the dispatch core to its collaborators. Any of whatsapp,
// telegram and history may be nil when the deployment does not enable them.
type Service struct {
	dispatcher Dispatcher
	whatsapp   dispatch.WhatsAppSender
	telegram   dispatch.TelegramSender
	history    dispatch.HistoryStore
	logger     *slog.Logger
}

func New(
	dispatcher Dispatcher,
	whatsapp dispatch.WhatsAppSender,
	telegram dispatch.TelegramSender,
	history dispatch.HistoryStore,
	logger *slog.Logger,
) *Service {
	return &Service{
		dispatcher: dispatcher,
		whatsapp:   whatsapp,
		telegram:   telegram,
		history:    history,
		logger:     logger.With("component", "Notifier"),
	}
}

// SendNotification dispatches req and records one history entry per envelope.
// History failures are logged and never change the returned envelopes.
func (s *Service) SendNotification(ctx context.Context, req *notification.NotificationRequest, origin Origin) []notification.ResponseEnvelope {
	envelopes := s.dispatcher.Dispatch(ctx, req)
	s.record(ctx, envelopes, origin)
	return envelopes
}

func (s *Service) record(ctx context.Context, envelopes []notification.ResponseEnvelope, origin Origin) {
	if s.history == nil || len(envelopes) == 0 {
		return
	}
	// The caller may already be gone; history is still written.
	ctx = context.WithoutCancel(ctx)
	for _, env := range envelopes {
		rec := notification.RecordFromEnvelope(env, origin.RequestedBy, origin.Source)
		if err := s.history.Record(ctx, rec); err != nil {
			s.logger.Warn("Failed to record notification history", "id", rec.ID, "channel", rec.Channel, "err", err)
		}
	}
}

// SendWhatsApp sends one WhatsApp message and returns the provider message id.
func (s *Service) SendWhatsApp(ctx context.Context, payload notification.WhatsAppPayload) (string, error) {
	if s.whatsapp == nil {
		return "", &dispatch.ProviderError{Provider: string(notification.ChannelWhatsApp), Code: "CHANNEL_DISABLED", Err: errors.New("whatsapp is not configured")}
	}
	return s.whatsapp.Send(ctx, payload)
}

// SendTelegram sends one Telegram message.
func (s *Service) SendTelegram(ctx context.Context, payload notification.TelegramPayload) (*notification.ProviderResult, error) {
	if s.telegram == nil {
		return nil, &dispatch.ProviderError{Provider: string(notification.ChannelTelegram), Code: "CHANNEL_DISABLED", Err: errors.New("telegram is not configured")}
	}
	return s.telegram.Send(ctx, payload)
}

// History lists recent records, newest first. limit is clamped to
// [1, MaxHistoryLimit]; zero or less means DefaultHistoryLimit.
func (s *Service) History(ctx context.Context, limit int) ([]notification.NotificationRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return s.history.List(ctx, limit)
}
