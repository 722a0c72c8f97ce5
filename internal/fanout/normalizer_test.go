package fanout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tinywideclouds/go-notification-gateway/internal/fanout"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

func TestActiveChannels(t *testing.T) {
	email := &notification.EmailPayload{Recipients: []string{"a@x.com"}, Subject: "s", Body: "b"}
	push := &notification.PushPayload{Token: "tok", Title: "t"}
	sms := &notification.SMSPayload{Recipients: []string{"+15550001"}, Message: "m"}

	testCases := []struct {
		name     string
		request  *notification.NotificationRequest
		expected []notification.ChannelKind
	}{
		{name: "Nil request", request: nil, expected: []notification.ChannelKind{}},
		{name: "Empty request", request: &notification.NotificationRequest{}, expected: []notification.ChannelKind{}},
		{
			name:     "All channels in fixed order",
			request:  &notification.NotificationRequest{SMS: sms, Push: push, Email: email},
			expected: []notification.ChannelKind{notification.ChannelEmail, notification.ChannelPush, notification.ChannelSMS},
		},
		{
			name: "Email present with no recipients is excluded",
			request: &notification.NotificationRequest{
				Email: &notification.EmailPayload{Recipients: []string{}, Subject: "s"},
				Push:  push,
			},
			expected: []notification.ChannelKind{notification.ChannelPush},
		},
		{
			name: "SMS present with no recipients is excluded",
			request: &notification.NotificationRequest{
				Email: email,
				SMS:   &notification.SMSPayload{Message: "m"},
			},
			expected: []notification.ChannelKind{notification.ChannelEmail},
		},
		{
			name:     "Empty push object is excluded",
			request:  &notification.NotificationRequest{Push: &notification.PushPayload{}},
			expected: []notification.ChannelKind{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, fanout.ActiveChannels(tc.request))
		})
	}
}
