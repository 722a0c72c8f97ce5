package fanout_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tinywideclouds/go-notification-gateway/internal/fanout"
	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

func fixedAssembler() fanout.Assembler {
	return fanout.Assembler{
		OperationID: fanout.OperationSendNotification,
		Now:         func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		NewID:       func() string { return "resp-1" },
	}
}

func TestAssembler(t *testing.T) {
	a := fixedAssembler()

	t.Run("Success envelope", func(t *testing.T) {
		result := &notification.ProviderResult{Provider: "smtp", MessageID: "m-1"}
		env := a.Success(notification.ChannelEmail, result)

		assert.Equal(t, notification.ResponseEnvelope{
			OperationID: "api.send.notification",
			ResponseID:  "resp-1",
			Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Channel:     notification.ChannelEmail,
			Status:      notification.StatusSuccess,
			Message:     "Notification sent successfully",
			Result:      result,
		}, env)
	})

	t.Run("Failure keeps provider classifier", func(t *testing.T) {
		err := &dispatch.ProviderError{Provider: "twilio", Code: "TOO_MANY_REQUESTS", Err: errors.New("slow down")}
		env := a.Failure(notification.ChannelSMS, err)

		assert.Equal(t, notification.StatusError, env.Status)
		assert.Equal(t, "Something went wrong", env.Message)
		assert.Equal(t, "TOO_MANY_REQUESTS", env.ErrorCode)
		assert.Equal(t, err.Error(), env.Error)
		assert.Nil(t, env.Result)
	})

	t.Run("Failure without classifier is internal", func(t *testing.T) {
		env := a.Failure(notification.ChannelPush, errors.New("boom"))
		assert.Equal(t, dispatch.CodeInternal, env.ErrorCode)
	})
}
