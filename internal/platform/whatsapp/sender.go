// Package whatsapp implements the direct WhatsApp operation over Twilio.
package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tinywideclouds/go-notification-gateway/internal/platform/twilio"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const addressPrefix = "whatsapp:"

// MessageCreator is satisfied by *twilio.Client.
type MessageCreator interface {
	CreateMessage(ctx context.Context, params twilio.MessageParams) (*twilio.Message, error)
}

// Sender sends single WhatsApp messages from a configured sender number.
type Sender struct {
	client MessageCreator
	from   string
	logger *slog.Logger
}

// NewSender creates a Sender. from may be given with or without the
// "whatsapp:" prefix.
func NewSender(client MessageCreator, from string, logger *slog.Logger) (*Sender, error) {
	from = FormatAddress(from)
	if from == "" {
		return nil, errors.New("whatsapp: sender number is required")
	}
	return &Sender{
		client: client,
		from:   from,
		logger: logger.With("component", "WhatsAppSender"),
	}, nil
}

// Send returns Twilio's message SID. Provider failures are returned
// unchanged as *dispatch.ProviderError.
func (s *Sender) Send(ctx context.Context, payload notification.WhatsAppPayload) (string, error) {
	msg, err := s.client.CreateMessage(ctx, twilio.MessageParams{
		From: s.from,
		To:   FormatAddress(payload.To),
		Body: payload.Message,
	})
	if err != nil {
		s.logger.Error("WhatsApp message not sent", "err", err)
		return "", err
	}
	s.logger.Info("WhatsApp message sent", "sid", msg.SID)
	return msg.SID, nil
}

// FormatAddress adds the "whatsapp:" channel prefix Twilio expects.
func FormatAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(trimmed), addressPrefix) {
		return addressPrefix + strings.TrimSpace(trimmed[len(addressPrefix):])
	}
	return addressPrefix + trimmed
}
