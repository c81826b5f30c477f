package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Memory store defaults
const (
	DefaultMaxEntries = 4096
	DefaultTTL        = 0
)

// cachedValue is one stored value with its insertion time
type cachedValue struct {
	data     []byte
	cachedAt int64 // Unix nano for atomic compare
}

// MemoryConfig configures a MemoryStore
type MemoryConfig struct {
	MaxEntries int           // <= 0 means unbounded
	TTL        time.Duration // 0 means entries never expire
}

// DefaultMemoryConfig returns the default in-memory configuration
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxEntries: DefaultMaxEntries,
		TTL:        DefaultTTL,
	}
}

// MemoryStore is a lock-free in-process Store on sync.Map. When full, the
// oldest entry is evicted.
type MemoryStore struct {
	entries sync.Map // map[string]*cachedValue

	maxEntries int
	ttlNanos   int64
	closed     atomic.Bool

	// Atomic counters
	hits      int64
	misses    int64
	puts      int64
	evictions int64
	count     int64
}

// NewMemoryStore creates an in-memory store
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	return &MemoryStore{
		maxEntries: cfg.MaxEntries,
		ttlNanos:   cfg.TTL.Nanoseconds(),
	}
}

// Get implements Store
func (m *MemoryStore) Get(key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	if val, ok := m.entries.Load(key); ok {
		cached := val.(*cachedValue)
		if m.ttlNanos <= 0 || time.Now().UnixNano()-atomic.LoadInt64(&cached.cachedAt) <= m.ttlNanos {
			atomic.AddInt64(&m.hits, 1)
			return append([]byte(nil), cached.data...), true, nil
		}
		// Expired - delete lazily
		if _, loaded := m.entries.LoadAndDelete(key); loaded {
			atomic.AddInt64(&m.count, -1)
		}
	}
	atomic.AddInt64(&m.misses, 1)
	return nil, false, nil
}

// Put implements Store
func (m *MemoryStore) Put(key string, value []byte) error {
	if m.closed.Load() {
		return ErrClosed
	}
	cached := &cachedValue{
		data:     append([]byte(nil), value...),
		cachedAt: time.Now().UnixNano(),
	}
	atomic.AddInt64(&m.puts, 1)
	if _, loaded := m.entries.Swap(key, cached); !loaded {
		count := atomic.AddInt64(&m.count, 1)
		if m.maxEntries > 0 && count > int64(m.maxEntries) {
			m.evictOldest(key)
		}
	}
	return nil
}

// Delete implements Store
func (m *MemoryStore) Delete(key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if _, loaded := m.entries.LoadAndDelete(key); loaded {
		atomic.AddInt64(&m.count, -1)
	}
	return nil
}

// Close implements Store; contents are dropped
func (m *MemoryStore) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.entries.Range(func(key, _ interface{}) bool {
		m.entries.Delete(key)
		return true
	})
	atomic.StoreInt64(&m.count, 0)
	return nil
}

// evictOldest removes the oldest entry other than keep
func (m *MemoryStore) evictOldest(keep string) {
	var oldestKey interface{}
	var oldestTime int64 = time.Now().UnixNano() + 1

	m.entries.Range(func(key, value interface{}) bool {
		if key.(string) == keep {
			return true
		}
		cachedAt := atomic.LoadInt64(&value.(*cachedValue).cachedAt)
		if cachedAt < oldestTime {
			oldestTime = cachedAt
			oldestKey = key
		}
		return true
	})

	if oldestKey != nil {
		if _, loaded := m.entries.LoadAndDelete(oldestKey); loaded {
			atomic.AddInt64(&m.count, -1)
			atomic.AddInt64(&m.evictions, 1)
		}
	}
}

// Stats returns a snapshot of the counters
func (m *MemoryStore) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&m.hits),
		Misses:    atomic.LoadInt64(&m.misses),
		Puts:      atomic.LoadInt64(&m.puts),
		Evictions: atomic.LoadInt64(&m.evictions),
		Entries:   atomic.LoadInt64(&m.count),
	}
}
