package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is an in-process Store. Entries hold the JSON encoding of the
// value and expire a fixed ttl after Set; reads do not extend them.
type MemoryStore struct {
	items     *ttlcache.Cache[string, []byte]
	closeOnce sync.Once
}

// NewMemoryStore creates an empty store and starts its expiry loop.
func NewMemoryStore() *MemoryStore {
	items := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](DefaultTTL),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &MemoryStore{items: items}
}

func (m *MemoryStore) Get(_ context.Context, key string, dest any) (bool, error) {
	item := m.items.Get(key)
	if item == nil {
		return false, nil
	}
	if err := json.Unmarshal(item.Value(), dest); err != nil {
		return false, fmt.Errorf("failed to decode cached value %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}
	m.items.Set(key, data, effectiveTTL(ttl))
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.items.DeleteAll()
	return nil
}

// Len reports the number of entries not yet evicted
func (m *MemoryStore) Len() int {
	return m.items.Len()
}

// Close stops the expiry loop. Safe to call more than once.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(m.items.Stop)
	return nil
}
