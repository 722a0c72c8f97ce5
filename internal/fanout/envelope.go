package fanout

import (
	"time"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const (
	// OperationSendNotification is the operation id stamped on fan-out envelopes.
	OperationSendNotification = "api.send.notification"

	MessageSent   = "Notification sent successfully"
	MessageFailed = "Something went wrong"
)

// outcome is the settled result of one channel attempt.
type outcome struct {
	result   *notification.ProviderResult
	err      error
	duration time.Duration
}

// Assembler turns channel outcomes into response envelopes.
type Assembler struct {
	OperationID string
	Now         func() time.Time
	NewID       func() string
}

// NewAssembler returns an Assembler stamping OperationSendNotification.
func NewAssembler() Assembler {
	return Assembler{
		OperationID: OperationSendNotification,
		Now:         time.Now,
		NewID:       uuid.NewString,
	}
}

// Success builds the envelope for a delivered channel.
func (a Assembler) Success(kind notification.ChannelKind, result *notification.ProviderResult) notification.ResponseEnvelope {
	return notification.ResponseEnvelope{
		OperationID: a.OperationID,
		ResponseID:  a.NewID(),
		Timestamp:   a.Now().UTC(),
		Channel:     kind,
		Status:      notification.StatusSuccess,
		Message:     MessageSent,
		Result:      result,
	}
}

// Failure builds the envelope for a failed channel. The error code is the
// classifier carried by err, or INTERNAL_SERVER_ERROR.
func (a Assembler) Failure(kind notification.ChannelKind, err error) notification.ResponseEnvelope {
	code := dispatch.ErrorCode(err)
	if code == "" {
		code = dispatch.CodeInternal
	}
	env := notification.ResponseEnvelope{
		OperationID: a.OperationID,
		ResponseID:  a.NewID(),
		Timestamp:   a.Now().UTC(),
		Channel:     kind,
		Status:      notification.StatusError,
		Message:     MessageFailed,
		ErrorCode:   code,
	}
	if err != nil {
		env.Error = err.Error()
	}
	return env
}

// Assemble pairs channels[i] with outcomes[i], keeping the channel order.
func (a Assembler) Assemble(channels []notification.ChannelKind, outcomes []outcome) []notification.ResponseEnvelope {
	envelopes := make([]notification.ResponseEnvelope, 0, len(channels))
	for i, kind := range channels {
		if outcomes[i].err != nil {
			envelopes = append(envelopes, a.Failure(kind, outcomes[i].err))
			continue
		}
		envelopes = append(envelopes, a.Success(kind, outcomes[i].result))
	}
	return envelopes
}
