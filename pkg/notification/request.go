package notification

import "encoding/json"

// NotificationRequest is a single notification that may target several
// channels at once. Every sub-payload is optional.
type NotificationRequest struct {
	Email *EmailPayload `json:"email,omitempty"`
	Push  *PushPayload  `json:"push,omitempty"`
	SMS   *SMSPayload   `json:"sms,omitempty"`
}

// Payload returns the sub-payload for a fan-out channel, or nil when the
// request does not carry one.
func (r *NotificationRequest) Payload(kind ChannelKind) ChannelPayload {
	if r == nil {
		return nil
	}
	switch kind {
	case ChannelEmail:
		if r.Email != nil {
			return r.Email
		}
	case ChannelPush:
		if r.Push != nil {
			return r.Push
		}
	case ChannelSMS:
		if r.SMS != nil {
			return r.SMS
		}
	}
	return nil
}

// EmailPayload is the email part of a request.
type EmailPayload struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	// HTML marks Body as HTML; a plain-text alternative is not generated.
	HTML bool `json:"html,omitempty"`
}

func (*EmailPayload) Channel() ChannelKind { return ChannelEmail }

// UnmarshalJSON accepts the legacy "receipients" key as well as "recipients".
func (p *EmailPayload) UnmarshalJSON(data []byte) error {
	type plain EmailPayload
	aux := struct {
		*plain
		Legacy []string `json:"receipients"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(p.Recipients) == 0 && len(aux.Legacy) > 0 {
		p.Recipients = aux.Legacy
	}
	return nil
}

// PushPlatform selects the push provider used for a PushPayload.
type PushPlatform string

const (
	PushPlatformFCM  PushPlatform = "fcm"
	PushPlatformAPNS PushPlatform = "apns"
	PushPlatformWeb  PushPlatform = "web"
)

// WebPushSubscription is a browser PushSubscription as serialised by
// PushSubscription.toJSON(); keys are base64url strings.
type WebPushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// PushPayload is the push part of a request.
type PushPayload struct {
	// Platform defaults to fcm when empty.
	Platform      PushPlatform          `json:"platform,omitempty"`
	Token         string                `json:"token,omitempty"`
	Tokens        []string              `json:"tokens,omitempty"`
	Subscriptions []WebPushSubscription `json:"subscriptions,omitempty"`
	Title         string                `json:"title,omitempty"`
	Body          string                `json:"body,omitempty"`
	Icon          string                `json:"icon,omitempty"`
	Sound         string                `json:"sound,omitempty"`
	Data          map[string]string     `json:"data,omitempty"`
}

func (*PushPayload) Channel() ChannelKind { return ChannelPush }

// IsZero reports whether the payload carries no field at all, which is how an
// empty push object ({}) is sent by clients.
func (p *PushPayload) IsZero() bool {
	return p == nil || (p.Platform == "" && p.Token == "" && len(p.Tokens) == 0 &&
		len(p.Subscriptions) == 0 && p.Title == "" && p.Body == "" &&
		p.Icon == "" && p.Sound == "" && len(p.Data) == 0)
}

// ResolvedPlatform returns Platform, falling back to fcm.
func (p *PushPayload) ResolvedPlatform() PushPlatform {
	if p.Platform == "" {
		return PushPlatformFCM
	}
	return p.Platform
}

// AllTokens merges Token and Tokens, skipping empties and duplicates.
func (p *PushPayload) AllTokens() []string {
	seen := make(map[string]struct{}, len(p.Tokens)+1)
	tokens := make([]string, 0, len(p.Tokens)+1)
	for _, t := range append([]string{p.Token}, p.Tokens...) {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	return tokens
}

// SMSPayload is the SMS part of a request.
type SMSPayload struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
	// From overrides the configured sender number.
	From string `json:"from,omitempty"`
}

func (*SMSPayload) Channel() ChannelKind { return ChannelSMS }

// UnmarshalJSON accepts the legacy "receipients" key as well as "recipients".
func (p *SMSPayload) UnmarshalJSON(data []byte) error {
	type plain SMSPayload
	aux := struct {
		*plain
		Legacy []string `json:"receipients"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(p.Recipients) == 0 && len(aux.Legacy) > 0 {
		p.Recipients = aux.Legacy
	}
	return nil
}

// WhatsAppPayload is sent through the direct WhatsApp operation.
type WhatsAppPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (*WhatsAppPayload) Channel() ChannelKind { return ChannelWhatsApp }

// TelegramPayload is sent through the direct Telegram operation.
type TelegramPayload struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

func (*TelegramPayload) Channel() ChannelKind { return ChannelTelegram }
