package cache

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hasher builds deterministic input fingerprints for cache keys. Every write
// is length-prefixed so adjacent fields cannot run together.
type Hasher struct {
	d *xxhash.Digest
}

// NewHasher creates an empty hasher
func NewHasher() *Hasher {
	return &Hasher{d: xxhash.New()}
}

// String adds a string
func (h *Hasher) String(s string) *Hasher {
	h.Uint64(uint64(len(s)))
	_, _ = h.d.WriteString(s)
	return h
}

// Strings adds a list of strings, count first
func (h *Hasher) Strings(ss ...string) *Hasher {
	h.Uint64(uint64(len(ss)))
	for _, s := range ss {
		h.String(s)
	}
	return h
}

// Bytes adds a byte slice
func (h *Hasher) Bytes(b []byte) *Hasher {
	h.Uint64(uint64(len(b)))
	_, _ = h.d.Write(b)
	return h
}

// Uint64 adds a number
func (h *Hasher) Uint64(v uint64) *Hasher {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.d.Write(buf[:])
	return h
}

// Bool adds a flag
func (h *Hasher) Bool(v bool) *Hasher {
	if v {
		return h.Uint64(1)
	}
	return h.Uint64(0)
}

// Sum64 returns the digest
func (h *Hasher) Sum64() uint64 {
	return h.d.Sum64()
}

// Key returns the digest as a fixed-width hex string with a prefix
func (h *Hasher) Key(prefix string) string {
	return prefix + FormatHash(h.d.Sum64())
}

// FormatHash renders a digest as 16 hex digits
func FormatHash(v uint64) string {
	s := strconv.FormatUint(v, 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}
