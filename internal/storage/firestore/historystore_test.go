//go:build integration

package firestore_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-notification-gateway/internal/storage/firestore"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupSuite(t *testing.T) (context.Context, *fs.HistoryStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-history-store"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, fs.NewHistoryStore(client, "history-test", newTestLogger())
}

func TestHistoryStore_Integration(t *testing.T) {
	ctx, store := setupSuite(t)
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 4; i++ {
		err := store.Record(ctx, notification.NotificationRecord{
			ID:          fmt.Sprintf("resp-%d", i),
			OperationID: "api.send.notification",
			Channel:     notification.ChannelSMS,
			Status:      notification.StatusSuccess,
			Message:     "Notification sent successfully",
			Source:      notification.SourceAPI,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	t.Run("Newest first and limited", func(t *testing.T) {
		list, err := store.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "resp-3", list[0].ID)
		assert.Equal(t, "resp-2", list[1].ID)
		assert.Equal(t, notification.ChannelSMS, list[0].Channel)
	})

	t.Run("Record without id is rejected", func(t *testing.T) {
		err := store.Record(ctx, notification.NotificationRecord{})
		assert.Error(t, err)
	})
}
