package trail

import (
	"context"
	"sync"

	"vouchercore/internal/fraud"
	"vouchercore/pkg/platform/sentinel"
)

// MemoryStore is an in-memory trail store for tests. Trails are capped like
// the Redis implementation; TTL retention is not simulated.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	Customer   map[string][]fraud.TrailEntry
	Provider   map[string][]fraud.TrailEntry
	HighRisk   []fraud.TrailEntry

	// FailWrites makes every append return an error, for best-effort
	// semantics tests.
	FailWrites bool
}

// NewMemoryStore constructs an in-memory trail store with the given entry cap.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		Customer:   make(map[string][]fraud.TrailEntry),
		Provider:   make(map[string][]fraud.TrailEntry),
	}
}

func (s *MemoryStore) AppendCustomer(_ context.Context, customerID string, entry fraud.TrailEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return sentinel.ErrUnavailable
	}
	s.Customer[customerID] = prepend(s.Customer[customerID], entry, s.maxEntries)
	return nil
}

func (s *MemoryStore) AppendProvider(_ context.Context, providerID string, entry fraud.TrailEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return sentinel.ErrUnavailable
	}
	s.Provider[providerID] = prepend(s.Provider[providerID], entry, s.maxEntries)
	return nil
}

func (s *MemoryStore) AppendHighRisk(_ context.Context, entry fraud.TrailEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return sentinel.ErrUnavailable
	}
	s.HighRisk = prepend(s.HighRisk, entry, s.maxEntries)
	return nil
}

func prepend(trail []fraud.TrailEntry, entry fraud.TrailEntry, maxEntries int) []fraud.TrailEntry {
	updated := append([]fraud.TrailEntry{entry}, trail...)
	if len(updated) > maxEntries {
		updated = updated[:maxEntries]
	}
	return updated
}
