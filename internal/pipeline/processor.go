package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-notification-gateway/internal/notifier"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// Sender is satisfied by *notifier.Service.
type Sender interface {
	SendNotification(ctx context.Context, req *notification.NotificationRequest, origin notifier.Origin) []notification.ResponseEnvelope
}

// NewProcessor hands each decoded request to the fan-out. Channel failures
// are final: they are logged and the message is still acknowledged, because
// the gateway does not retry provider calls.
func NewProcessor(sender Sender, logger *slog.Logger) messagepipeline.StreamProcessor[notification.NotificationRequest] {
	logger = logger.With("component", "NotificationProcessor")

	return func(ctx context.Context, original messagepipeline.Message, request *notification.NotificationRequest) error {
		procLogger := logger.With("pubsub_msg_id", original.ID)

		envelopes := sender.SendNotification(ctx, request, notifier.Origin{Source: notification.SourcePubSub})
		if len(envelopes) == 0 {
			procLogger.Info("Notification had no active channels; dropping.")
			return nil
		}

		failed := 0
		for _, env := range envelopes {
			if !env.Succeeded() {
				failed++
				procLogger.Warn("Channel failed", "channel", env.Channel, "code", env.ErrorCode, "err", env.Error)
			}
		}
		procLogger.Info("Notification dispatched", "channels", len(envelopes), "failed", failed)
		return nil
	}
}
