package fanout

import "github.com/tinywideclouds/go-notification-gateway/pkg/notification"

// ActiveChannels returns the channels of req that will be attempted, always in
// the order email, push, sms.
//
// Email and SMS need at least one recipient. Push has no recipient list; it
// is active as soon as the payload carries any field.
func ActiveChannels(req *notification.NotificationRequest) []notification.ChannelKind {
	active := make([]notification.ChannelKind, 0, len(notification.FanOutChannels))
	if req == nil {
		return active
	}
	for _, kind := range notification.FanOutChannels {
		if isActive(req, kind) {
			active = append(active, kind)
		}
	}
	return active
}

func isActive(req *notification.NotificationRequest, kind notification.ChannelKind) bool {
	switch kind {
	case notification.ChannelEmail:
		return req.Email != nil && len(req.Email.Recipients) > 0
	case notification.ChannelPush:
		return req.Push != nil && !req.Push.IsZero()
	case notification.ChannelSMS:
		return req.SMS != nil && len(req.SMS.Recipients) > 0
	}
	return false
}
