// Package pipeline ingests notification requests from Pub/Sub.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// NotificationRequestTransformer is a dataflow Transformer that unmarshals a
// raw message payload into a notification.NotificationRequest.
func NotificationRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*notification.NotificationRequest, bool, error) {
	var req notification.NotificationRequest

	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		// skip=true lets the StreamingService Nack the message so the
		// subscription's dead-letter policy takes over.
		return nil, true, fmt.Errorf("failed to unmarshal notification request from message %s: %w", msg.ID, err)
	}

	return &req, false, nil
}
