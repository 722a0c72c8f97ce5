package fanout_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/tinywideclouds/go-notification-gateway/internal/fanout"
	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func delayedAdapter(d time.Duration, provider string) dispatch.Adapter {
	return dispatch.AdapterFunc(func(_ context.Context, _ notification.ChannelPayload) (*notification.ProviderResult, error) {
		time.Sleep(d)
		return &notification.ProviderResult{Provider: provider, MessageID: provider + "-1"}, nil
	})
}

func failingAdapter(err error) dispatch.Adapter {
	return dispatch.AdapterFunc(func(_ context.Context, _ notification.ChannelPayload) (*notification.ProviderResult, error) {
		return nil, err
	})
}

func fullRequest() *notification.NotificationRequest {
	return &notification.NotificationRequest{
		Email: &notification.EmailPayload{Recipients: []string{"a@x.com"}, Subject: "s", Body: "b"},
		Push:  &notification.PushPayload{Token: "tok", Title: "t", Body: "b"},
		SMS:   &notification.SMSPayload{Recipients: []string{"+15550001"}, Message: "m"},
	}
}

func channelsOf(envs []notification.ResponseEnvelope) []notification.ChannelKind {
	kinds := make([]notification.ChannelKind, 0, len(envs))
	for _, e := range envs {
		kinds = append(kinds, e.Channel)
	}
	return kinds
}

func TestCoordinator_Dispatch(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	allChannels := []notification.ChannelKind{notification.ChannelEmail, notification.ChannelPush, notification.ChannelSMS}

	t.Run("Empty request yields no envelopes", func(t *testing.T) {
		coordinator := fanout.NewCoordinator(fanout.NewRegistry(), logger)

		envs := coordinator.Dispatch(ctx, &notification.NotificationRequest{})
		require.NotNil(t, envs)
		assert.Empty(t, envs)
	})

	t.Run("Order is fixed regardless of completion order", func(t *testing.T) {
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelEmail, delayedAdapter(60*time.Millisecond, "smtp")))
		require.NoError(t, registry.Register(notification.ChannelPush, failingAdapter(errors.New("fcm down"))))
		require.NoError(t, registry.Register(notification.ChannelSMS, delayedAdapter(10*time.Millisecond, "twilio")))
		coordinator := fanout.NewCoordinator(registry, logger)

		envs := coordinator.Dispatch(ctx, fullRequest())

		require.Len(t, envs, 3)
		assert.Equal(t, allChannels, channelsOf(envs))
		assert.True(t, envs[0].Succeeded())
		assert.False(t, envs[1].Succeeded())
		assert.True(t, envs[2].Succeeded())
	})

	t.Run("Adapters run concurrently", func(t *testing.T) {
		registry := fanout.NewRegistry()
		for _, kind := range allChannels {
			require.NoError(t, registry.Register(kind, delayedAdapter(100*time.Millisecond, string(kind))))
		}
		coordinator := fanout.NewCoordinator(registry, logger)

		start := time.Now()
		envs := coordinator.Dispatch(ctx, fullRequest())
		elapsed := time.Since(start)

		require.Len(t, envs, 3)
		assert.Less(t, elapsed, 250*time.Millisecond, "three 100ms adapters should overlap")
	})

	t.Run("One failure does not affect siblings", func(t *testing.T) {
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelEmail, delayedAdapter(0, "smtp")))
		require.NoError(t, registry.Register(notification.ChannelPush, delayedAdapter(0, "fcm")))
		require.NoError(t, registry.Register(notification.ChannelSMS, failingAdapter(
			&dispatch.ProviderError{Provider: "twilio", Code: "BAD_REQUEST", Err: errors.New("invalid number")},
		)))
		coordinator := fanout.NewCoordinator(registry, logger)

		envs := coordinator.Dispatch(ctx, fullRequest())

		require.Len(t, envs, 3)
		assert.Equal(t, notification.StatusSuccess, envs[0].Status)
		assert.Equal(t, "smtp-1", envs[0].Result.MessageID)
		assert.Equal(t, fanout.MessageSent, envs[0].Message)
		assert.Equal(t, notification.StatusSuccess, envs[1].Status)
		assert.Equal(t, "fcm-1", envs[1].Result.MessageID)

		assert.Equal(t, notification.StatusError, envs[2].Status)
		assert.Equal(t, fanout.MessageFailed, envs[2].Message)
		assert.Equal(t, "BAD_REQUEST", envs[2].ErrorCode)
		assert.Contains(t, envs[2].Error, "invalid number")
	})

	t.Run("Unresolvable channel is contained", func(t *testing.T) {
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelEmail, delayedAdapter(0, "smtp")))
		require.NoError(t, registry.Register(notification.ChannelSMS, delayedAdapter(0, "twilio")))
		coordinator := fanout.NewCoordinator(registry, logger)

		envs := coordinator.Dispatch(ctx, fullRequest())

		require.Len(t, envs, 3)
		assert.True(t, envs[0].Succeeded())
		assert.Equal(t, notification.ChannelPush, envs[1].Channel)
		assert.Equal(t, dispatch.CodeUnknownChannel, envs[1].ErrorCode)
		assert.True(t, envs[2].Succeeded())
	})

	t.Run("Inactive channels are not attempted", func(t *testing.T) {
		var smsCalls atomic.Int32
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelEmail, delayedAdapter(0, "smtp")))
		require.NoError(t, registry.Register(notification.ChannelSMS, dispatch.AdapterFunc(
			func(_ context.Context, _ notification.ChannelPayload) (*notification.ProviderResult, error) {
				smsCalls.Add(1)
				return &notification.ProviderResult{}, nil
			})))
		coordinator := fanout.NewCoordinator(registry, logger)

		req := &notification.NotificationRequest{
			Email: &notification.EmailPayload{Recipients: []string{"a@x.com"}, Subject: "s", Body: "b"},
			SMS:   &notification.SMSPayload{Recipients: []string{}},
		}
		envs := coordinator.Dispatch(ctx, req)

		require.Len(t, envs, 1)
		assert.Equal(t, notification.ChannelEmail, envs[0].Channel)
		assert.Zero(t, smsCalls.Load())
	})

	t.Run("Adapter receives only its own payload", func(t *testing.T) {
		var got notification.ChannelPayload
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelPush, dispatch.AdapterFunc(
			func(_ context.Context, p notification.ChannelPayload) (*notification.ProviderResult, error) {
				got = p
				return &notification.ProviderResult{Provider: "fcm"}, nil
			})))
		coordinator := fanout.NewCoordinator(registry, logger)

		req := &notification.NotificationRequest{Push: &notification.PushPayload{Token: "tok"}}
		coordinator.Dispatch(ctx, req)

		assert.Same(t, req.Push, got)
	})

	t.Run("Panicking adapter becomes an internal failure", func(t *testing.T) {
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelEmail, dispatch.AdapterFunc(
			func(_ context.Context, _ notification.ChannelPayload) (*notification.ProviderResult, error) {
				panic("nil map")
			})))
		require.NoError(t, registry.Register(notification.ChannelSMS, delayedAdapter(0, "twilio")))
		coordinator := fanout.NewCoordinator(registry, logger)

		envs := coordinator.Dispatch(ctx, &notification.NotificationRequest{
			Email: &notification.EmailPayload{Recipients: []string{"a@x.com"}},
			SMS:   &notification.SMSPayload{Recipients: []string{"+1"}},
		})

		require.Len(t, envs, 2)
		assert.Equal(t, dispatch.CodeInternal, envs[0].ErrorCode)
		assert.Contains(t, envs[0].Error, "panicked")
		assert.True(t, envs[1].Succeeded())
	})

	t.Run("Slow adapter times out alone", func(t *testing.T) {
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelEmail, delayedAdapter(500*time.Millisecond, "smtp")))
		require.NoError(t, registry.Register(notification.ChannelPush, delayedAdapter(0, "fcm")))
		coordinator := fanout.NewCoordinator(registry, logger, fanout.WithAdapterTimeout(30*time.Millisecond))

		envs := coordinator.Dispatch(ctx, &notification.NotificationRequest{
			Email: &notification.EmailPayload{Recipients: []string{"a@x.com"}},
			Push:  &notification.PushPayload{Token: "tok"},
		})

		require.Len(t, envs, 2)
		assert.Equal(t, dispatch.CodeTimeout, envs[0].ErrorCode)
		assert.True(t, envs[1].Succeeded())
	})

	t.Run("Cancelled caller does not abort attempts", func(t *testing.T) {
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelEmail, dispatch.AdapterFunc(
			func(ctx context.Context, _ notification.ChannelPayload) (*notification.ProviderResult, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return &notification.ProviderResult{Provider: "smtp"}, nil
			})))
		coordinator := fanout.NewCoordinator(registry, logger)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		envs := coordinator.Dispatch(cancelled, &notification.NotificationRequest{
			Email: &notification.EmailPayload{Recipients: []string{"a@x.com"}},
		})

		require.Len(t, envs, 1)
		assert.True(t, envs[0].Succeeded())
	})

	t.Run("Failure outside channel attempts yields one internal envelope", func(t *testing.T) {
		// A coordinator without a registry cannot resolve anything.
		coordinator := fanout.NewCoordinator(nil, logger)

		envs := coordinator.Dispatch(ctx, fullRequest())

		require.Len(t, envs, 1)
		assert.Equal(t, notification.StatusError, envs[0].Status)
		assert.Equal(t, dispatch.CodeInternal, envs[0].ErrorCode)
		assert.Equal(t, fanout.OperationSendNotification, envs[0].OperationID)
		assert.Empty(t, envs[0].Channel)
	})

	t.Run("Envelopes are stamped by the assembler", func(t *testing.T) {
		registry := fanout.NewRegistry()
		require.NoError(t, registry.Register(notification.ChannelEmail, delayedAdapter(0, "smtp")))
		coordinator := fanout.NewCoordinator(registry, logger, fanout.WithAssembler(fixedAssembler()))

		envs := coordinator.Dispatch(ctx, &notification.NotificationRequest{
			Email: &notification.EmailPayload{Recipients: []string{"a@x.com"}},
		})

		require.Len(t, envs, 1)
		assert.Equal(t, "resp-1", envs[0].ResponseID)
		assert.Equal(t, 2026, envs[0].Timestamp.Year())
	})
}

func TestCoordinator_Metrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	registry := fanout.NewRegistry()
	require.NoError(t, registry.Register(notification.ChannelEmail, delayedAdapter(0, "smtp")))
	require.NoError(t, registry.Register(notification.ChannelSMS, failingAdapter(errors.New("down"))))
	coordinator := fanout.NewCoordinator(registry, newTestLogger(), fanout.WithMeterProvider(provider))

	coordinator.Dispatch(ctx, &notification.NotificationRequest{
		Email: &notification.EmailPayload{Recipients: []string{"a@x.com"}},
		SMS:   &notification.SMSPayload{Recipients: []string{"+1"}},
	})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "notification_channel_attempts_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				channel, _ := dp.Attributes.Value("channel")
				status, _ := dp.Attributes.Value("status")
				counts[channel.AsString()+"/"+status.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, map[string]int64{"email/success": 1, "sms/error": 1}, counts)
}
