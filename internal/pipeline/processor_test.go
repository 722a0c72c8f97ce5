package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-notification-gateway/internal/notifier"
	"github.com/tinywideclouds/go-notification-gateway/internal/pipeline"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendNotification(ctx context.Context, req *notification.NotificationRequest, origin notifier.Origin) []notification.ResponseEnvelope {
	return m.Called(ctx, req, origin).Get(0).([]notification.ResponseEnvelope)
}

func TestProcessor(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	inbound := &notification.NotificationRequest{Push: &notification.PushPayload{Token: "t", Title: "Hello"}}
	original := messagepipeline.Message{MessageData: messagepipeline.MessageData{ID: "pubsub-1"}}

	t.Run("Dispatches with pubsub origin", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("SendNotification", mock.Anything, inbound, notifier.Origin{Source: notification.SourcePubSub}).
			Return([]notification.ResponseEnvelope{{Channel: notification.ChannelPush, Status: notification.StatusSuccess}})

		processor := pipeline.NewProcessor(sender, logger)
		err := processor(ctx, original, inbound)

		require.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("Channel failures are acknowledged, not retried", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("SendNotification", mock.Anything, inbound, mock.Anything).
			Return([]notification.ResponseEnvelope{{Channel: notification.ChannelPush, Status: notification.StatusError, ErrorCode: "UNAVAILABLE"}})

		processor := pipeline.NewProcessor(sender, logger)
		err := processor(ctx, original, inbound)

		require.NoError(t, err)
	})

	t.Run("Empty request is dropped", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("SendNotification", mock.Anything, mock.Anything, mock.Anything).Return([]notification.ResponseEnvelope{})

		processor := pipeline.NewProcessor(sender, logger)
		require.NoError(t, processor(ctx, original, &notification.NotificationRequest{}))
	})
}
