// Package cache persists migration results between builds. Stores are
// explicit handles owned by the caller; nothing here is process-global.
// A cache entry that cannot be decoded is treated as a miss, never an error.
package cache

import (
	"errors"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("cache store is closed")

// Store is a string-keyed byte store safe for concurrent use
type Store interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Stats are hit/miss counters of a store
type Stats struct {
	Hits      int64
	Misses    int64
	Puts      int64
	Evictions int64
	Entries   int64
}

// HitRate returns hits over lookups, 0 when nothing was looked up
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
