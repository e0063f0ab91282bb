package cache

import (
	"path"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// memoryStore is the fallback tier. Expiry is checked on read; nothing sweeps.
type memoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{items: make(map[string]memoryItem), now: now}
}

func (m *memoryStore) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		return nil, false
	}
	return item.value, true
}

func (m *memoryStore) set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	m.items[key] = memoryItem{value: value, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

func (m *memoryStore) deletePattern(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
			n++
		}
	}
	return n
}

// counts returns unexpired and total entries.
func (m *memoryStore) counts() (live, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, item := range m.items {
		if now.Before(item.expiresAt) {
			live++
		}
	}
	return live, len(m.items)
}
