// Package fcm sends push notifications through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const providerName = "fcm"

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Dispatcher struct {
	client MessagingClient
	logger *slog.Logger
}

func NewDispatcher(client MessagingClient, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger.With("component", "FCMDispatcher"),
	}
}

// Send multicasts the payload to every device token. The channel succeeds when
// at least one token accepted the message; dead tokens are reported in
// Meta["invalid_tokens"] so callers can prune them.
func (d *Dispatcher) Send(ctx context.Context, p *notification.PushPayload) (*notification.ProviderResult, error) {
	tokens := p.AllTokens()
	if len(tokens) == 0 {
		return nil, &dispatch.ValidationError{Field: "push.token", Reason: "at least one device token is required"}
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   p.Data,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: p.Title,
				Body:  p.Body,
				Icon:  p.Icon,
			},
		},
	}
	if p.Sound != "" {
		msg.Android = &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{Sound: p.Sound},
		}
	}

	br, err := d.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return nil, &dispatch.ProviderError{Provider: providerName, Code: errorCode(err), Err: fmt.Errorf("fcm transport failed: %w", err)}
	}

	var invalidTokens []string
	var firstErr error
	messageID := ""
	for idx, resp := range br.Responses {
		if resp.Success {
			if messageID == "" {
				messageID = resp.MessageID
			}
			continue
		}
		if firstErr == nil {
			firstErr = resp.Error
		}
		if messaging.IsInvalidArgument(resp.Error) || messaging.IsRegistrationTokenNotRegistered(resp.Error) {
			invalidTokens = append(invalidTokens, tokens[idx])
		}
	}

	if br.SuccessCount == 0 {
		d.logger.Warn("FCM rejected every token", "tokens", len(tokens), "invalid", len(invalidTokens))
		return nil, &dispatch.ProviderError{
			Provider: providerName,
			Code:     errorCode(firstErr),
			Err:      fmt.Errorf("all %d tokens failed: %v", len(tokens), firstErr),
		}
	}

	status := "sent"
	if br.FailureCount > 0 {
		status = "partial"
	}
	result := &notification.ProviderResult{
		Provider:  providerName,
		MessageID: messageID,
		Status:    status,
		Meta: map[string]string{
			"success": strconv.Itoa(br.SuccessCount),
			"failure": strconv.Itoa(br.FailureCount),
		},
	}
	if len(invalidTokens) > 0 {
		result.Meta["invalid_tokens"] = strings.Join(invalidTokens, ",")
	}
	return result, nil
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case messaging.IsInvalidArgument(err):
		return "INVALID_ARGUMENT"
	case messaging.IsRegistrationTokenNotRegistered(err):
		return "UNREGISTERED"
	case messaging.IsSenderIDMismatch(err):
		return "SENDER_ID_MISMATCH"
	case messaging.IsQuotaExceeded(err):
		return "QUOTA_EXCEEDED"
	case messaging.IsThirdPartyAuthError(err):
		return "THIRD_PARTY_AUTH_ERROR"
	case messaging.IsUnavailable(err):
		return "UNAVAILABLE"
	case messaging.IsInternal(err):
		return "INTERNAL"
	}
	return ""
}
