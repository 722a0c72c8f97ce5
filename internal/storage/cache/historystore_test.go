package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-notification-gateway/internal/storage/cache"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockRealStore struct {
	mock.Mock
}

func (m *MockRealStore) Record(ctx context.Context, rec notification.NotificationRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *MockRealStore) List(ctx context.Context, limit int) ([]notification.NotificationRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notification.NotificationRecord), args.Error(1)
}

func records(ids ...string) []notification.NotificationRecord {
	out := make([]notification.NotificationRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, notification.NotificationRecord{ID: id})
	}
	return out
}

func TestCachedHistoryStore(t *testing.T) {
	ctx := context.Background()
	const key = "notify:history:recent"

	t.Run("Cache Miss - Populates window from DB", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedHistoryStore(mockDB, mockCache, time.Hour)

		fresh := records("c", "b", "a")
		mockCache.On("Get", ctx, key, mock.Anything).Return(redis.Nil)
		mockDB.On("List", ctx, cache.DefaultWindow).Return(fresh, nil)
		mockCache.On("Set", ctx, key, fresh, time.Hour).Return(nil)

		list, err := store.List(ctx, 2)

		require.NoError(t, err)
		assert.Equal(t, records("c", "b"), list)
		mockCache.AssertExpectations(t)
		mockDB.AssertExpectations(t)
	})

	t.Run("Cache Hit - DB untouched", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedHistoryStore(mockDB, mockCache, time.Hour)

		mockCache.On("Get", ctx, key, mock.Anything).Run(func(args mock.Arguments) {
			dest := args.Get(2).(*[]notification.NotificationRecord)
			*dest = records("z", "y")
		}).Return(nil)

		list, err := store.List(ctx, 10)

		require.NoError(t, err)
		assert.Equal(t, records("z", "y"), list)
		mockDB.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("Redis down - Served from DB", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedHistoryStore(mockDB, mockCache, time.Hour)

		mockCache.On("Get", ctx, key, mock.Anything).Return(errors.New("dial tcp: refused"))
		mockDB.On("List", ctx, cache.DefaultWindow).Return(records("a"), nil)
		mockCache.On("Set", ctx, key, mock.Anything, time.Hour).Return(errors.New("dial tcp: refused"))

		list, err := store.List(ctx, 5)

		require.NoError(t, err)
		assert.Equal(t, records("a"), list)
	})

	t.Run("Large listings bypass the cache", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedHistoryStore(mockDB, mockCache, time.Hour)

		mockDB.On("List", ctx, 500).Return(records("a"), nil)

		_, err := store.List(ctx, 500)

		require.NoError(t, err)
		mockCache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Record invalidates the window", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedHistoryStore(mockDB, mockCache, time.Hour)

		rec := notification.NotificationRecord{ID: "new"}
		mockDB.On("Record", ctx, rec).Return(nil)
		mockCache.On("Del", ctx, key).Return(nil)

		require.NoError(t, store.Record(ctx, rec))
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Failed write leaves the cache alone", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedHistoryStore(mockDB, mockCache, time.Hour)

		mockDB.On("Record", ctx, mock.Anything).Return(errors.New("firestore unavailable"))

		err := store.Record(ctx, notification.NotificationRecord{ID: "x"})

		require.Error(t, err)
		mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
	})
}
