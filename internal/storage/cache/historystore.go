package cache

import (
	"context"
	"time"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const (
	recentKey = "notify:history:recent"

	// DefaultWindow is how many recent records are kept in the cache.
	DefaultWindow = 100
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedHistoryStore is a Decorator that adds Read-Aside caching of the most
// recent records to any HistoryStore.
type CachedHistoryStore struct {
	realStore dispatch.HistoryStore
	cache     CacheClient
	ttl       time.Duration
	window    int
}

// NewCachedHistoryStore creates the decorator.
func NewCachedHistoryStore(realStore dispatch.HistoryStore, cache CacheClient, ttl time.Duration) *CachedHistoryStore {
	return &CachedHistoryStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		window:    DefaultWindow,
	}
}

// --- READ PATH (Read-Aside) ---

// List serves limits inside the cached window from the cache; larger listings
// always go to the real store.
func (s *CachedHistoryStore) List(ctx context.Context, limit int) ([]notification.NotificationRecord, error) {
	if limit <= 0 || limit > s.window {
		return s.realStore.List(ctx, limit)
	}

	var cached []notification.NotificationRecord
	if err := s.cache.Get(ctx, recentKey, &cached); err == nil {
		return head(cached, limit), nil
	}

	fresh, err := s.realStore.List(ctx, s.window)
	if err != nil {
		return nil, err
	}

	// Caching is an optimisation; if Redis is down we just serve from the DB.
	_ = s.cache.Set(ctx, recentKey, fresh, s.ttl)

	return head(fresh, limit), nil
}

// --- WRITE PATH (Invalidate-on-Write) ---

func (s *CachedHistoryStore) Record(ctx context.Context, rec notification.NotificationRecord) error {
	if err := s.realStore.Record(ctx, rec); err != nil {
		return err
	}
	// The next List is forced to go to the real store.
	return s.cache.Del(ctx, recentKey)
}

func head(records []notification.NotificationRecord, limit int) []notification.NotificationRecord {
	if len(records) > limit {
		return records[:limit]
	}
	return records
}
