// Package firestore keeps notification history in Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "notifications"

// DefaultListLimit applies when List is called with a non-positive limit.
const DefaultListLimit = 50

// HistoryStore implements dispatch.HistoryStore using Google Cloud Firestore.
type HistoryStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

func NewHistoryStore(client *firestore.Client, collection string, logger *slog.Logger) *HistoryStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &HistoryStore{
		client:     client,
		collection: collection,
		logger:     logger.With("component", "FirestoreHistoryStore"),
	}
}

// Record writes rec under its id; the envelope's response id is unique per
// attempt, so writes never collide.
func (s *HistoryStore) Record(ctx context.Context, rec notification.NotificationRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("history record has no id")
	}
	if _, err := s.client.Collection(s.collection).Doc(rec.ID).Set(ctx, rec); err != nil {
		return fmt.Errorf("firestore write failed: %w", err)
	}
	return nil
}

// List returns the newest records first.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]notification.NotificationRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	iter := s.client.Collection(s.collection).
		OrderBy("created_at", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	records := make([]notification.NotificationRecord, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var rec notification.NotificationRecord
		if err := doc.DataTo(&rec); err != nil {
			// Skip corrupt rows rather than failing the whole listing.
			s.logger.Warn("Skipping unreadable history document", "doc", doc.Ref.ID, "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
