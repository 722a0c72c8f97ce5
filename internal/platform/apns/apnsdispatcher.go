// Package apns provides the client for the Apple Push Notification Service.
package apns

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const providerName = "apns"

// APNSClient defines the subset of the apns2.Client methods we use.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

type Dispatcher struct {
	client APNSClient
	topic  string // The App Bundle ID (e.g. com.tinywide.messenger)
	logger *slog.Logger
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file
	P8KeyContent string
	// Sandbox targets the development gateway.
	Sandbox bool
}

// NewDispatcher creates a configured APNS dispatcher.
// It parses the P8 key immediately to fail fast on startup if credentials are bad.
func NewDispatcher(cfg Config, logger *slog.Logger) (*Dispatcher, error) {
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	tokenSource := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	client := apns2.NewTokenClient(tokenSource)
	if cfg.Sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}

	return NewDispatcherWithClient(client, cfg.BundleID, logger), nil
}

// NewDispatcherWithClient wires an existing client.
func NewDispatcherWithClient(client APNSClient, topic string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		topic:  topic,
		logger: logger.With("component", "APNSDispatcher"),
	}
}

// Send pushes the payload to every device token.
// Note: APNs HTTP/2 API is unary (one request per token). There is no "Multicast" endpoint.
func (d *Dispatcher) Send(ctx context.Context, p *notification.PushPayload) (*notification.ProviderResult, error) {
	tokens := p.AllTokens()
	if len(tokens) == 0 {
		return nil, &dispatch.ValidationError{Field: "push.token", Reason: "at least one device token is required"}
	}

	builder := payload.NewPayload().
		AlertTitle(p.Title).
		AlertBody(p.Body)
	if p.Sound != "" {
		builder.Sound(p.Sound)
	}
	for k, v := range p.Data {
		builder.Custom(k, v)
	}

	var invalidTokens []string
	var firstErr *dispatch.ProviderError
	successCount := 0
	apnsID := ""

	for _, deviceToken := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("apns push interrupted: %w", err)
		}

		res, err := d.client.PushWithContext(ctx, &apns2.Notification{
			DeviceToken: deviceToken,
			Topic:       d.topic,
			Payload:     builder,
		})
		if err != nil {
			d.logger.Error("APNs transport failed", "err", err)
			if firstErr == nil {
				firstErr = &dispatch.ProviderError{Provider: providerName, Err: err}
			}
			continue
		}

		if res.Sent() {
			successCount++
			if apnsID == "" {
				apnsID = res.ApnsID
			}
			continue
		}

		switch res.Reason {
		case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
			invalidTokens = append(invalidTokens, deviceToken)
		default:
			d.logger.Warn("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode)
		}
		if firstErr == nil {
			firstErr = &dispatch.ProviderError{
				Provider:   providerName,
				Code:       res.Reason,
				StatusCode: res.StatusCode,
				Err:        fmt.Errorf("rejected with status %d", res.StatusCode),
			}
		}
	}

	if successCount == 0 {
		return nil, firstErr
	}

	result := &notification.ProviderResult{
		Provider:  providerName,
		MessageID: apnsID,
		Status:    "sent",
		Meta: map[string]string{
			"success": strconv.Itoa(successCount),
			"failure": strconv.Itoa(len(tokens) - successCount),
		},
	}
	if successCount < len(tokens) {
		result.Status = "partial"
	}
	if len(invalidTokens) > 0 {
		result.Meta["invalid_tokens"] = strings.Join(invalidTokens, ",")
	}
	return result, nil
}
