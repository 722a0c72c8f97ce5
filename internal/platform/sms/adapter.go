// Package sms delivers the SMS channel through Twilio.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tinywideclouds/go-notification-gateway/internal/platform/twilio"
	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// MessageCreator is satisfied by *twilio.Client.
type MessageCreator interface {
	CreateMessage(ctx context.Context, params twilio.MessageParams) (*twilio.Message, error)
}

// Adapter sends one SMS per recipient.
type Adapter struct {
	client MessageCreator
	from   string
	logger *slog.Logger
}

// NewAdapter creates an SMS adapter sending from the given number unless the
// payload overrides it.
func NewAdapter(client MessageCreator, from string, logger *slog.Logger) *Adapter {
	return &Adapter{
		client: client,
		from:   strings.TrimSpace(from),
		logger: logger.With("component", "SMSAdapter"),
	}
}

// Send messages every recipient in turn. If any recipient fails the channel
// fails; the error joins every per-recipient failure.
func (a *Adapter) Send(ctx context.Context, payload notification.ChannelPayload) (*notification.ProviderResult, error) {
	p, ok := payload.(*notification.SMSPayload)
	if !ok || p == nil {
		return nil, &dispatch.ValidationError{Field: "sms", Reason: fmt.Sprintf("unexpected payload %T", payload)}
	}
	if len(p.Recipients) == 0 {
		return nil, &dispatch.ValidationError{Field: "sms.recipients", Reason: "at least one recipient is required"}
	}

	from := a.from
	if p.From != "" {
		from = strings.TrimSpace(p.From)
	}
	if from == "" {
		return nil, &dispatch.ValidationError{Field: "sms.from", Reason: "no sender number configured"}
	}

	var sids []string
	var errs []error
	for _, to := range p.Recipients {
		msg, err := a.client.CreateMessage(ctx, twilio.MessageParams{From: from, To: strings.TrimSpace(to), Body: p.Message})
		if err != nil {
			a.logger.Warn("SMS recipient rejected", "to", to, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
			continue
		}
		sids = append(sids, msg.SID)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%d of %d sms recipients failed: %w", len(errs), len(p.Recipients), errors.Join(errs...))
	}

	return &notification.ProviderResult{
		Provider:  "twilio",
		MessageID: strings.Join(sids, ","),
		Status:    "queued",
		Meta:      map[string]string{"recipients": strconv.Itoa(len(sids))},
	}, nil
}
