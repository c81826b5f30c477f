package cache

import (
	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/jremap/internal/debug"
)

// LoadDocument decodes the TOML document stored under key into v. A missing
// key, a read error or an undecodable document all report a miss.
func LoadDocument(s Store, key string, v interface{}) bool {
	if s == nil {
		return false
	}
	data, ok, err := s.Get(key)
	if err != nil {
		debug.LogCache("read %s: %v", key, err)
		return false
	}
	if !ok {
		debug.LogCache("miss %s", key)
		return false
	}
	if err := toml.Unmarshal(data, v); err != nil {
		debug.LogCache("discarding stale entry %s: %v", key, err)
		return false
	}
	debug.LogCache("hit %s", key)
	return true
}

// SaveDocument encodes v as TOML under key
func SaveDocument(s Store, key string, v interface{}) error {
	if s == nil {
		return nil
	}
	data, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(key, data)
}
