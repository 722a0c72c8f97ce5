package fanout

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const instrumentationName = "github.com/tinywideclouds/go-notification-gateway/internal/fanout"

type channelMetrics struct {
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

func newChannelMetrics(meter metric.Meter, logger *slog.Logger) *channelMetrics {
	m := &channelMetrics{}
	var err error

	m.attempts, err = meter.Int64Counter(
		"notification_channel_attempts_total",
		metric.WithDescription("Channel delivery attempts by outcome"),
	)
	if err != nil {
		logger.Warn("Failed to create attempts counter", "err", err)
	}

	m.duration, err = meter.Float64Histogram(
		"notification_channel_duration_seconds",
		metric.WithDescription("Duration of channel adapter calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("Failed to create duration histogram", "err", err)
	}
	return m
}

func (m *channelMetrics) record(ctx context.Context, kind notification.ChannelKind, status notification.EnvelopeStatus, d time.Duration) {
	if m.attempts != nil {
		m.attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", string(kind)),
			attribute.String("status", string(status)),
		))
	}
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("channel", string(kind))))
	}
}
