package fanout_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-gateway/internal/fanout"
	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

func okAdapter(provider string) dispatch.Adapter {
	return dispatch.AdapterFunc(func(_ context.Context, _ notification.ChannelPayload) (*notification.ProviderResult, error) {
		return &notification.ProviderResult{Provider: provider, MessageID: provider + "-1"}, nil
	})
}

func TestRegistry(t *testing.T) {
	t.Run("Resolves registered adapter", func(t *testing.T) {
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelEmail, okAdapter("smtp")))

		adapter, err := registry.Resolve(notification.ChannelEmail)
		require.NoError(t, err)
		res, err := adapter.Send(context.Background(), &notification.EmailPayload{})
		require.NoError(t, err)
		assert.Equal(t, "smtp", res.Provider)
	})

	t.Run("Unknown channel is a typed error", func(t *testing.T) {
		registry := fanout.NewRegistry()
		_, err := registry.Resolve(notification.ChannelSMS)
		require.Error(t, err)
		assert.ErrorIs(t, err, dispatch.ErrUnknownChannel)
		assert.Contains(t, err.Error(), "sms")
	})

	t.Run("Rejects bad registrations", func(t *testing.T) {
		registry := fanout.NewRegistry()
		assert.Error(t, registry.Register("fax", okAdapter("fax")))
		assert.Error(t, registry.Register(notification.ChannelPush, nil))

		require.NoError(t, registry.Register(notification.ChannelPush, okAdapter("fcm")))
		assert.Error(t, registry.Register(notification.ChannelPush, okAdapter("fcm")), "duplicate registration")
	})

	t.Run("Channels are listed in envelope order", func(t *testing.T) {
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelSMS, okAdapter("twilio")))
		require.NoError(t, registry.Register(notification.ChannelEmail, okAdapter("smtp")))
		require.NoError(t, registry.Register(notification.ChannelTelegram, okAdapter("telegram")))

		assert.Equal(t, []notification.ChannelKind{notification.ChannelEmail, notification.ChannelSMS}, registry.Channels())
	})
}
