package notification

import "time"

// EnvelopeStatus is the outcome of one channel attempt.
type EnvelopeStatus string

const (
	StatusSuccess EnvelopeStatus = "success"
	StatusError   EnvelopeStatus = "error"
)

// ProviderResult is what an adapter reports after a successful hand-off to
// its provider.
type ProviderResult struct {
	Provider  string            `json:"provider"`
	MessageID string            `json:"messageId,omitempty"`
	Status    string            `json:"status,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// ResponseEnvelope is the per-channel result returned to callers of the
// fan-out operation. Envelopes are built once and never modified.
type ResponseEnvelope struct {
	OperationID string          `json:"id"`
	ResponseID  string          `json:"resmsgid"`
	Timestamp   time.Time       `json:"ts"`
	Channel     ChannelKind     `json:"channel,omitempty"`
	Status      EnvelopeStatus  `json:"status"`
	Message     string          `json:"message"`
	Result      *ProviderResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorCode   string          `json:"errorCode,omitempty"`
}

// Succeeded reports whether the envelope carries a success status.
func (e ResponseEnvelope) Succeeded() bool { return e.Status == StatusSuccess }
