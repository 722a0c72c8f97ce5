// Package notification contains the public domain models for the
// notification gateway: the multi-channel request, the per-channel payloads
// and the envelopes returned to callers.
package notification

// ChannelKind identifies a delivery medium.
type ChannelKind string

const (
	ChannelEmail    ChannelKind = "email"
	ChannelPush     ChannelKind = "push"
	ChannelSMS      ChannelKind = "sms"
	ChannelWhatsApp ChannelKind = "whatsapp"
	ChannelTelegram ChannelKind = "telegram"
)

// FanOutChannels lists the channels a NotificationRequest can address, in the
// order their envelopes are returned.
var FanOutChannels = []ChannelKind{ChannelEmail, ChannelPush, ChannelSMS}

// Valid reports whether k is one of the known channel kinds.
func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelEmail, ChannelPush, ChannelSMS, ChannelWhatsApp, ChannelTelegram:
		return true
	}
	return false
}

func (k ChannelKind) String() string { return string(k) }

// ChannelPayload is implemented by every per-channel payload handed to an
// adapter.
type ChannelPayload interface {
	Channel() ChannelKind
}
