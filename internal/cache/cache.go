// Package cache provides an in-memory store with per-entry TTL, used to
// memoize expensive derived computations such as market analyses.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// sweepBatchSize is the amortized-cleanup trigger: whenever an insert leaves
// the store with a size that is a multiple of this threshold, a full sweep
// removes every expired entry. Cleanup cost stays proportional to insert
// volume without a background timer.
const sweepBatchSize = 64

// Key derives a canonical string key from a structured lookup value. The
// value is serialized through a generic JSON round trip so that map keys are
// emitted in sorted order; two structurally equal lookups always produce the
// same key regardless of field insertion order.
func Key(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return string(raw)
	}
	return string(canonical)
}

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

// Stats reports the store's current size and keys, for diagnostics.
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Store is a mutex-guarded key/value store with per-entry TTL. An expired
// entry is never returned by Get, even if no sweep has run yet; expiry is
// always checked on read.
type Store struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates a Store whose Set entries expire after defaultTTL.
func New(defaultTTL time.Duration) *Store {
	return &Store{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the live value for the canonicalized key. An entry past its
// TTL is deleted and reported as a miss.
func (s *Store) Get(key any) (any, bool) {
	k := Key(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[k]
	if !ok {
		return nil, false
	}
	if s.expired(e) {
		delete(s.entries, k)
		return nil, false
	}
	return e.value, true
}

// Set stores value under the canonicalized key with the default TTL.
func (s *Store) Set(key, value any) {
	s.SetTTL(key, value, s.defaultTTL)
}

// SetTTL stores value with an explicit TTL. After insertion, when the store
// size hits a multiple of the sweep batch, all expired entries are removed.
func (s *Store) SetTTL(key, value any, ttl time.Duration) {
	k := Key(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[k] = entry{value: value, storedAt: s.now(), ttl: ttl}

	if len(s.entries)%sweepBatchSize == 0 {
		s.sweepLocked()
	}
}

// Delete removes the entry for the canonicalized key, if present.
func (s *Store) Delete(key any) {
	k := Key(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, k)
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
}

// CleanupExpired runs a full sweep and returns the number of entries removed.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

// Stats returns the current size and key list.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return Stats{Size: len(s.entries), Keys: keys}
}

// expired reports whether the entry is past its TTL. The boundary is strict:
// an entry is still live at exactly storedAt+ttl.
func (s *Store) expired(e entry) bool {
	return s.now().Sub(e.storedAt) > e.ttl
}

func (s *Store) sweepLocked() int {
	var removed int
	for k, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}
