package cache

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 10000

type memoryItem struct {
	entry    *Entry
	expireAt time.Time
	accessAt time.Time
}

func (m *memoryItem) expired() bool {
	return !m.expireAt.IsZero() && time.Now().After(m.expireAt)
}

// Memory is an in-process Cache with lazy expiry and LRU eviction once the
// entry limit is reached. It is the default for single-node runs.
type Memory struct {
	mu         sync.Mutex
	items      map[string]*memoryItem
	maxEntries int
}

// NewMemory creates an in-memory cache holding at most maxEntries results.
// A non-positive limit falls back to the default of 10000.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{
		items:      make(map[string]*memoryItem),
		maxEntries: maxEntries,
	}
}

func (m *Memory) Get(_ context.Context, fingerprint string) (*Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[fingerprint]
	if !ok {
		return nil, false, nil
	}
	if item.expired() {
		delete(m.items, fingerprint)
		return nil, false, nil
	}

	item.accessAt = time.Now()
	return item.entry, true, nil
}

func (m *Memory) Set(_ context.Context, fingerprint string, entry *Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[fingerprint]; !exists && len(m.items) >= m.maxEntries {
		m.evictOldest()
	}

	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}
	m.items[fingerprint] = &memoryItem{
		entry:    entry,
		expireAt: expireAt,
		accessAt: time.Now(),
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*memoryItem)
	return nil
}

func (m *Memory) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range m.items {
		if oldestKey == "" || item.accessAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.accessAt
		}
	}
	if oldestKey != "" {
		delete(m.items, oldestKey)
	}
}
