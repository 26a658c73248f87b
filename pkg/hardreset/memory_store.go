package hardreset

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps issued tokens for the process lifetime. This is the
// default: toolkit issuance and validation normally happen in the same
// process, and losing tokens on restart only forces the operator to request
// a new one.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   Clock
}

type memoryEntry struct {
	tenantID  string
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), clock: wallClock{}}
}

// WithClock injects a test clock. Eviction must run on the same clock the
// issuer stamps expiries with, or cleanup can evict live tokens.
func (s *MemoryStore) WithClock(c Clock) *MemoryStore {
	if c != nil {
		s.clock = c
	}
	return s
}

func (s *MemoryStore) Put(ctx context.Context, token, tenantID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic cleanup keeps the map from growing unbounded under
	// repeated issuance.
	now := s.clock.Now()
	for t, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, t)
		}
	}

	s.entries[token] = memoryEntry{tenantID: tenantID, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, token string) (string, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return "", time.Time{}, false, nil
	}
	return e.tenantID, e.expiresAt, true, nil
}
