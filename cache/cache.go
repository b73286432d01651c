// Package cache provides keyed storage of previously fetched response sets.
//
// Values are stored as JSON snapshots, so any serializable shape round-trips.
// A cache failure is never an error: a value that is absent, expired, or
// undecodable is simply a miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/codeGROOVE-dev/bdcache"
	"github.com/codeGROOVE-dev/bdcache/persist/localfs"
)

// Store is a TTL cache of serialized values keyed by string.
// Concurrent reads and writes to different keys do not block each other;
// writes to the same key are linearized by the underlying cache.
type Store struct {
	cache *bdcache.Cache[string, []byte]
	ttl   time.Duration
}

// New creates an in-memory Store. Entries older than ttl are treated as
// absent on read; ttl 0 disables expiry.
func New(ttl time.Duration) (*Store, error) {
	c, err := bdcache.New[string, []byte](
		context.Background(),
		bdcache.WithDefaultTTL(ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Store{cache: c, ttl: ttl}, nil
}

// NewWithPath creates a Store persisted to disk at the given directory,
// so cached responses survive process restarts.
func NewWithPath(ttl time.Duration, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("booru", path)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	c, err := bdcache.New[string, []byte](
		context.Background(),
		bdcache.WithPersistence(persist),
		bdcache.WithDefaultTTL(ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Store{cache: c, ttl: ttl}, nil
}

// TTL returns the default time-to-live for entries.
func (s *Store) TTL() time.Duration { return s.ttl }

// Close flushes and closes the store.
func (s *Store) Close() error { return s.cache.Close() }

// Insert stores a JSON snapshot of v under key, overwriting any prior
// entry. The write is all-or-nothing: a value that fails to serialize is
// not stored at all, and the failure is swallowed because the cache is an
// optimization, not a correctness requirement.
func Insert[T any](ctx context.Context, s *Store, key string, v T) {
	if s == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, data, s.ttl) //nolint:errcheck // cache errors are non-critical
}

// Get deserializes the snapshot stored under key back into T. Absent,
// expired, and undecodable entries all report a miss.
func Get[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	data, found, err := s.cache.Get(ctx, key)
	if err != nil || !found {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false
	}
	return v, true
}
