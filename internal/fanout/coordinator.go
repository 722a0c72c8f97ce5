// Package fanout implements the multi-channel dispatch core: it decides which
// channels of a request are active, resolves an adapter for each, runs them
// concurrently and assembles one envelope per attempted channel.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithAdapterTimeout bounds every adapter call. A call that exceeds it is
// reported as a GATEWAY_TIMEOUT failure for its channel only. Zero disables
// the bound.
func WithAdapterTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.adapterTimeout = d
		}
	}
}

// WithAssembler overrides how envelopes are stamped (clock, ids).
func WithAssembler(a Assembler) Option {
	return func(c *Coordinator) { c.assembler = a }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) {
		if tp != nil {
			c.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Coordinator) {
		if mp != nil {
			c.meter = mp.Meter(instrumentationName)
		}
	}
}

// Coordinator fans a NotificationRequest out to its channel adapters.
type Coordinator struct {
	registry       *Registry
	assembler      Assembler
	adapterTimeout time.Duration
	tracer         trace.Tracer
	meter          metric.Meter
	metrics        *channelMetrics
	logger         *slog.Logger
}

// NewCoordinator creates a Coordinator reading adapters from registry.
func NewCoordinator(registry *Registry, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:  registry,
		assembler: NewAssembler(),
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
		logger:    logger.With("component", "DispatchCoordinator"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.metrics = newChannelMetrics(c.meter, c.logger)
	return c
}

// Dispatch attempts every active channel of req once and returns one envelope
// per attempted channel, in the order email, push, sms. It never returns an
// error: channel failures become error envelopes, and an unexpected failure
// outside the channel attempts becomes a single INTERNAL_SERVER_ERROR envelope.
//
// Cancellation of ctx does not abort channel attempts that have started.
func (c *Coordinator) Dispatch(ctx context.Context, req *notification.NotificationRequest) (envelopes []notification.ResponseEnvelope) {
	ctx, span := c.tracer.Start(ctx, "fanout.Dispatch")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("dispatch aborted: %v", r)
			c.logger.Error("Notification dispatch failed", "err", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "dispatch aborted")
			envelopes = []notification.ResponseEnvelope{internalFailure(c.assembler.OperationID, err)}
		}
	}()

	channels := ActiveChannels(req)
	if len(channels) == 0 {
		c.logger.Info("Notification request has no active channels")
		return []notification.ResponseEnvelope{}
	}
	span.SetAttributes(attribute.Int("notification.channels", len(channels)))
	c.logger.Info("Dispatching notification", "channels", channels)

	// Channel attempts outlive the caller: they are bounded only by the
	// adapter timeout.
	attemptCtx := context.WithoutCancel(ctx)

	outcomes := make([]outcome, len(channels))
	var wg sync.WaitGroup
	for i, kind := range channels {
		adapter, err := c.registry.Resolve(kind)
		if err != nil {
			c.logger.Error("Channel adapter not resolved", "channel", kind, "err", err)
			outcomes[i] = outcome{err: err}
			continue
		}

		wg.Add(1)
		go func(i int, kind notification.ChannelKind, adapter dispatch.Adapter, payload notification.ChannelPayload) {
			defer wg.Done()
			// Each goroutine owns outcomes[i]; no other index is touched.
			outcomes[i] = c.attempt(attemptCtx, kind, adapter, payload)
		}(i, kind, adapter, req.Payload(kind))
	}
	wg.Wait()

	return c.assembler.Assemble(channels, outcomes)
}

// attempt runs one adapter call, converting panics and timeouts into failures.
func (c *Coordinator) attempt(ctx context.Context, kind notification.ChannelKind, adapter dispatch.Adapter, payload notification.ChannelPayload) outcome {
	ctx, span := c.tracer.Start(ctx, "fanout.Send",
		trace.WithAttributes(attribute.String("notification.channel", string(kind))),
	)
	defer span.End()

	if c.adapterTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.adapterTimeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%s adapter panicked: %v", kind, r)}
			}
		}()
		result, err := adapter.Send(ctx, payload)
		done <- outcome{result: result, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: fmt.Errorf("%s adapter: %w", kind, ctx.Err())}
	}
	out.duration = time.Since(start)

	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, "channel delivery failed")
		c.metrics.record(ctx, kind, notification.StatusError, out.duration)
		c.logger.Error("Channel delivery failed",
			"channel", kind,
			"code", dispatch.ErrorCode(out.err),
			"duration", out.duration,
			"err", out.err,
		)
		return out
	}

	c.metrics.record(ctx, kind, notification.StatusSuccess, out.duration)
	attrs := []any{"channel", kind, "duration", out.duration}
	if out.result != nil {
		attrs = append(attrs, "provider", out.result.Provider, "provider_message_id", out.result.MessageID)
	}
	c.logger.Info("Channel delivered", attrs...)
	return out
}

// internalFailure builds the catch-all envelope without going through the
// Assembler, which may itself be what failed.
func internalFailure(operationID string, err error) notification.ResponseEnvelope {
	return notification.ResponseEnvelope{
		OperationID: operationID,
		ResponseID:  uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Status:      notification.StatusError,
		Message:     MessageFailed,
		Error:       err.Error(),
		ErrorCode:   dispatch.CodeInternal,
	}
}
