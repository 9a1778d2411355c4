// Package cache stores rendered trending pages between requests.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"githubhotspot/config"
	"githubhotspot/models"
)

// Supported backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// DefaultTTL applies when Set is called with a non-positive ttl
const DefaultTTL = 30 * time.Minute

// ErrUnsupportedBackend is returned by New for an unknown backend name
var ErrUnsupportedBackend = fmt.Errorf("unsupported cache backend")

// Store is a TTL key/value cache. Values are stored as JSON so cached data
// never shares memory with the caller.
type Store interface {
	// Get decodes the value under key into dest. It reports false on a miss
	// or an expired entry.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// New returns the store selected by cfg.Backend
func New(cfg config.CacheConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	case BackendNone:
		return NoopStore{}, nil
	default:
		return nil, fmt.Errorf("%w: %s. Must be memory, sqlite or none", ErrUnsupportedBackend, cfg.Backend)
	}
}

// TrendingKey identifies one cached trending page
func TrendingKey(req models.TrendingRequest, policy models.ScoringPolicy) string {
	return fmt.Sprintf("trending_%s_%d_%d_%d_%s",
		strings.ToLower(req.Language), int(req.TimePeriod), req.Limit, req.Page, policy)
}

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

// NoopStore never stores anything
type NoopStore struct{}

func (NoopStore) Get(context.Context, string, any) (bool, error) { return false, nil }

func (NoopStore) Set(context.Context, string, any, time.Duration) error { return nil }

func (NoopStore) Remove(context.Context, string) error { return nil }

func (NoopStore) Clear(context.Context) error { return nil }

func (NoopStore) Close() error { return nil }
