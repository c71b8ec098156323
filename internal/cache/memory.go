package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value   any
	expires time.Time // zero means no expiry
}

// MemoryCache is used when Redis is not configured and in tests
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *MemoryCache) Close() error {
	return nil
}

func (m *MemoryCache) IsProcessed(ctx context.Context, hash string) (bool, error) {
	_, ok := m.get(seenNamespace + hash)
	return ok, nil
}

func (m *MemoryCache) MarkProcessed(ctx context.Context, hash string, ttl time.Duration) error {
	m.set(seenNamespace+hash, true, ttl)
	return nil
}

func (m *MemoryCache) ClearProcessed(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, seenNamespace) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *MemoryCache) GetSummary(ctx context.Context, key string) (*Summary, error) {
	v, ok := m.get(summaryNamespace + key)
	if !ok {
		return nil, nil
	}
	s := v.(Summary)
	s.KeyPoints = append([]string(nil), s.KeyPoints...)
	return &s, nil
}

func (m *MemoryCache) SetSummary(ctx context.Context, key string, s Summary, ttl time.Duration) error {
	s.KeyPoints = append([]string(nil), s.KeyPoints...)
	m.set(summaryNamespace+key, s, ttl)
	return nil
}

func (m *MemoryCache) get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.data, key)
		return nil, false
	}
	return e.value, true
}

func (m *MemoryCache) set(key string, v any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: v}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.data[key] = e
}
