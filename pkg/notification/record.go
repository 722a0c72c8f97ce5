package notification

import "time"

// Source says how a notification entered the gateway.
type Source string

const (
	SourceAPI    Source = "api"
	SourcePubSub Source = "pubsub"
)

// NotificationRecord is the history entry written for every fan-out envelope.
type NotificationRecord struct {
	ID          string         `json:"id" firestore:"id"`
	OperationID string         `json:"operationId" firestore:"operation_id"`
	Channel     ChannelKind    `json:"channel" firestore:"channel"`
	Status      EnvelopeStatus `json:"status" firestore:"status"`
	Message     string         `json:"message" firestore:"message"`
	ProviderID  string         `json:"providerMessageId,omitempty" firestore:"provider_message_id,omitempty"`
	ErrorCode   string         `json:"errorCode,omitempty" firestore:"error_code,omitempty"`
	Error       string         `json:"error,omitempty" firestore:"error,omitempty"`
	RequestedBy string         `json:"requestedBy,omitempty" firestore:"requested_by,omitempty"`
	Source      Source         `json:"source" firestore:"source"`
	CreatedAt   time.Time      `json:"createdAt" firestore:"created_at"`
}

// RecordFromEnvelope builds the history entry for env.
func RecordFromEnvelope(env ResponseEnvelope, requestedBy string, source Source) NotificationRecord {
	rec := NotificationRecord{
		ID:          env.ResponseID,
		OperationID: env.OperationID,
		Channel:     env.Channel,
		Status:      env.Status,
		Message:     env.Message,
		ErrorCode:   env.ErrorCode,
		Error:       env.Error,
		RequestedBy: requestedBy,
		Source:      source,
		CreatedAt:   env.Timestamp,
	}
	if env.Result != nil {
		rec.ProviderID = env.Result.MessageID
	}
	return rec
}
