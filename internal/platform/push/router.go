// Package push adapts the platform push senders (FCM, APNs, Web Push) to the
// push channel.
package push

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// CodeNotConfigured marks a push platform the gateway has no credentials for.
const CodeNotConfigured = "PLATFORM_NOT_CONFIGURED"

// Sender delivers a push payload on one platform.
type Sender interface {
	Send(ctx context.Context, p *notification.PushPayload) (*notification.ProviderResult, error)
}

// Router is the push channel adapter. It picks a Sender by the payload's
// platform, defaulting to fcm.
type Router struct {
	senders map[notification.PushPlatform]Sender
	logger  *slog.Logger
}

// NewRouter creates a Router. Platforms absent from senders are reported as
// not configured when requested.
func NewRouter(senders map[notification.PushPlatform]Sender, logger *slog.Logger) *Router {
	registered := make(map[notification.PushPlatform]Sender, len(senders))
	for platform, sender := range senders {
		if sender != nil {
			registered[platform] = sender
		}
	}
	return &Router{
		senders: registered,
		logger:  logger.With("component", "PushRouter"),
	}
}

func (r *Router) Send(ctx context.Context, payload notification.ChannelPayload) (*notification.ProviderResult, error) {
	p, ok := payload.(*notification.PushPayload)
	if !ok || p == nil {
		return nil, &dispatch.ValidationError{Field: "push", Reason: fmt.Sprintf("unexpected payload %T", payload)}
	}

	platform := p.ResolvedPlatform()
	switch platform {
	case notification.PushPlatformFCM, notification.PushPlatformAPNS, notification.PushPlatformWeb:
	default:
		return nil, &dispatch.ValidationError{Field: "push.platform", Reason: fmt.Sprintf("unsupported platform %q", platform)}
	}

	sender, ok := r.senders[platform]
	if !ok {
		return nil, &dispatch.ProviderError{
			Provider: string(platform),
			Code:     CodeNotConfigured,
			Err:      fmt.Errorf("push platform %s is not configured", platform),
		}
	}

	r.logger.Debug("Routing push notification", "platform", platform)
	return sender.Send(ctx, p)
}
