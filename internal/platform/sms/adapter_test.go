package sms_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-notification-gateway/internal/platform/sms"
	"github.com/tinywideclouds/go-notification-gateway/internal/platform/twilio"
	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) CreateMessage(ctx context.Context, params twilio.MessageParams) (*twilio.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twilio.Message), args.Error(1)
}

func TestAdapter_Send(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Happy Path - One message per recipient", func(t *testing.T) {
		client := new(MockCreator)
		adapter := sms.NewAdapter(client, "+15559999", logger)

		client.On("CreateMessage", ctx, twilio.MessageParams{From: "+15559999", To: "+15550001", Body: "hi"}).
			Return(&twilio.Message{SID: "SM1"}, nil)
		client.On("CreateMessage", ctx, twilio.MessageParams{From: "+15559999", To: "+15550002", Body: "hi"}).
			Return(&twilio.Message{SID: "SM2"}, nil)

		result, err := adapter.Send(ctx, &notification.SMSPayload{Recipients: []string{"+15550001", "+15550002"}, Message: "hi"})

		require.NoError(t, err)
		assert.Equal(t, "SM1,SM2", result.MessageID)
		assert.Equal(t, "2", result.Meta["recipients"])
		client.AssertExpectations(t)
	})

	t.Run("Payload sender overrides configured number", func(t *testing.T) {
		client := new(MockCreator)
		adapter := sms.NewAdapter(client, "+15559999", logger)
		client.On("CreateMessage", ctx, mock.MatchedBy(func(p twilio.MessageParams) bool {
			return p.From == "+15551111"
		})).Return(&twilio.Message{SID: "SM1"}, nil)

		_, err := adapter.Send(ctx, &notification.SMSPayload{Recipients: []string{"+1"}, From: "+15551111"})

		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Any failed recipient fails the channel with its classifier", func(t *testing.T) {
		client := new(MockCreator)
		adapter := sms.NewAdapter(client, "+15559999", logger)
		client.On("CreateMessage", ctx, mock.MatchedBy(func(p twilio.MessageParams) bool { return p.To == "+1" })).
			Return(&twilio.Message{SID: "SM1"}, nil)
		client.On("CreateMessage", ctx, mock.MatchedBy(func(p twilio.MessageParams) bool { return p.To == "bad" })).
			Return(nil, &dispatch.ProviderError{Provider: "twilio", Code: "BAD_REQUEST", Err: errors.New("invalid number")})

		_, err := adapter.Send(ctx, &notification.SMSPayload{Recipients: []string{"+1", "bad"}})

		require.Error(t, err)
		assert.Equal(t, "BAD_REQUEST", dispatch.ErrorCode(err))
		assert.Contains(t, err.Error(), "1 of 2")
	})

	t.Run("Missing sender is a validation error", func(t *testing.T) {
		adapter := sms.NewAdapter(new(MockCreator), "", logger)

		_, err := adapter.Send(ctx, &notification.SMSPayload{Recipients: []string{"+1"}})

		require.ErrorIs(t, err, dispatch.ErrValidation)
	})
}
