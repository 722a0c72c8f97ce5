// Package web sends browser push notifications using VAPID.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const providerName = "webpush"

// Config holds the VAPID identity of this server.
type Config struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
	TTL             int
}

type Dispatcher struct {
	subscriber string
	privateKey string
	publicKey  string
	ttl        int
	logger     *slog.Logger
	httpClient webpush.HTTPClient
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the client used to reach push services.
func WithHTTPClient(client webpush.HTTPClient) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.httpClient = client
		}
	}
}

func NewDispatcher(cfg Config, logger *slog.Logger, opts ...Option) *Dispatcher {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60
	}
	d := &Dispatcher{
		privateKey: cfg.PrivateKey,
		publicKey:  cfg.PublicKey,
		subscriber: strings.TrimPrefix(cfg.SubscriberEmail, "mailto:"),
		ttl:        ttl,
		logger:     logger.With("component", "WebPushDispatcher"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Send encrypts the payload for every browser subscription. Subscriptions the
// push service reports as gone are listed in Meta["invalid_endpoints"].
func (d *Dispatcher) Send(ctx context.Context, p *notification.PushPayload) (*notification.ProviderResult, error) {
	if len(p.Subscriptions) == 0 {
		return nil, &dispatch.ValidationError{Field: "push.subscriptions", Reason: "at least one web push subscription is required"}
	}

	payloadBytes, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{
			"title": p.Title,
			"body":  p.Body,
			"icon":  p.Icon,
		},
		"data": p.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var invalid []string
	var firstErr *dispatch.ProviderError
	successCount := 0
	location := ""

	for _, sub := range p.Subscriptions {
		s := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.Keys.P256dh,
				Auth:   sub.Keys.Auth,
			},
		}

		resp, err := webpush.SendNotificationWithContext(ctx, payloadBytes, s, &webpush.Options{
			Subscriber:      d.subscriber,
			VAPIDPublicKey:  d.publicKey,
			VAPIDPrivateKey: d.privateKey,
			TTL:             d.ttl,
			HTTPClient:      d.httpClient,
		})
		if err != nil {
			d.logger.Error("WebPush transport error", "endpoint", sub.Endpoint, "err", err)
			if firstErr == nil {
				firstErr = &dispatch.ProviderError{Provider: providerName, Err: err}
			}
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			successCount++
			if location == "" {
				location = resp.Header.Get("Location")
			}
			continue
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			invalid = append(invalid, sub.Endpoint)
		default:
			d.logger.Warn("WebPush rejected", "status", resp.StatusCode, "endpoint", sub.Endpoint)
		}
		if firstErr == nil {
			firstErr = dispatch.NewHTTPProviderError(providerName, resp.StatusCode, fmt.Errorf("push service returned %d", resp.StatusCode))
		}
	}

	if successCount == 0 {
		return nil, firstErr
	}

	result := &notification.ProviderResult{
		Provider:  providerName,
		MessageID: location,
		Status:    "sent",
		Meta: map[string]string{
			"success": strconv.Itoa(successCount),
			"failure": strconv.Itoa(len(p.Subscriptions) - successCount),
		},
	}
	if successCount < len(p.Subscriptions) {
		result.Status = "partial"
	}
	if len(invalid) > 0 {
		result.Meta["invalid_endpoints"] = strings.Join(invalid, ",")
	}
	return result, nil
}
