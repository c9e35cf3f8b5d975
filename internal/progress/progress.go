// Package progress persists the resume index of each content set.
// Records expire after a fixed TTL and heal themselves: anything stale or
// unreadable is deleted on the next read. Backend failures are logged and
// swallowed; callers never see them.
package progress

import (
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"vigil/internal/media"
)

// DefaultTTL is how long a saved index stays valid.
const DefaultTTL = time.Hour

const keyPrefix = "rosary_progress_"

// ErrQuotaExceeded is returned by backends that are full.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Backend is a string key/value store.
type Backend interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Keys() ([]string, error)
}

// Key returns the storage key for a content set.
func Key(setID string) string {
	return keyPrefix + setID
}

// Store reads and writes ProgressRecords on a Backend.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save records index for setID with the current timestamp.
func (s *Store) Save(setID string, index int) {
	rec := media.ProgressRecord{SetID: setID, Index: index, SavedAt: s.now().UnixMilli()}
	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("progress: encoding %s: %v", setID, err)
		return
	}
	if err := s.backend.Set(Key(setID), string(data)); err != nil {
		log.Printf("progress: failed to save %s: %v", setID, err)
	}
}

// Load returns the record for setID if it is younger than the TTL.
// Expired or corrupt records are removed.
func (s *Store) Load(setID string) (media.ProgressRecord, bool) {
	return s.load(Key(setID))
}

func (s *Store) load(key string) (media.ProgressRecord, bool) {
	raw, ok, err := s.backend.Get(key)
	if err != nil {
		log.Printf("progress: failed to read %s: %v", key, err)
		return media.ProgressRecord{}, false
	}
	if !ok {
		return media.ProgressRecord{}, false
	}

	var rec media.ProgressRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.SavedAt == 0 {
		s.remove(key)
		return media.ProgressRecord{}, false
	}

	age := s.now().UnixMilli() - rec.SavedAt
	if age >= s.ttl.Milliseconds() {
		s.remove(key)
		return media.ProgressRecord{}, false
	}
	if rec.SetID == "" {
		rec.SetID = strings.TrimPrefix(key, keyPrefix)
	}
	return rec, true
}

// Clear removes the record for setID.
func (s *Store) Clear(setID string) {
	s.remove(Key(setID))
}

func (s *Store) remove(key string) {
	if err := s.backend.Remove(key); err != nil {
		log.Printf("progress: failed to clear %s: %v", key, err)
	}
}

// List returns every live record sorted by set id, purging stale ones.
func (s *Store) List() []media.ProgressRecord {
	keys, err := s.backend.Keys()
	if err != nil {
		log.Printf("progress: failed to list keys: %v", err)
		return nil
	}

	var out []media.ProgressRecord
	for _, k := range keys {
		if !strings.HasPrefix(k, keyPrefix) {
			continue
		}
		if rec, ok := s.load(k); ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SetID < out[j].SetID })
	return out
}
