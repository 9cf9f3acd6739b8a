package history

import (
	"context"
	"sync"
	"time"

	"vouchercore/internal/fraud"
	"vouchercore/pkg/platform/sentinel"
)

// Clock supplies the current time; injected for testability.
type Clock func() time.Time

// MemoryStore is an in-memory fraud history store for tests. TTLs are honored
// against the injected clock.
type MemoryStore struct {
	mu              sync.Mutex
	lastRedemptions map[string]expiring[fraud.LastRedemption]
	lastLocations   map[string]expiring[fraud.LastLocation]
	windows         map[string][]fraud.Location
	clock           Clock

	// FailReads makes every read return an error, simulating an unavailable
	// backing store for degradation tests.
	FailReads bool
}

type expiring[T any] struct {
	value    T
	deadline time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) MemoryStoreOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemoryStore constructs an in-memory fraud history store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		lastRedemptions: make(map[string]expiring[fraud.LastRedemption]),
		lastLocations:   make(map[string]expiring[fraud.LastLocation]),
		windows:         make(map[string][]fraud.Location),
		clock:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) GetLastRedemption(_ context.Context, customerID string) (*fraud.LastRedemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return nil, sentinel.ErrUnavailable
	}
	entry, ok := s.lastRedemptions[customerID]
	if !ok || s.clock().After(entry.deadline) {
		return nil, sentinel.ErrNotFound
	}
	rec := entry.value
	return &rec, nil
}

func (s *MemoryStore) SetLastRedemption(_ context.Context, customerID string, rec fraud.LastRedemption, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRedemptions[customerID] = expiring[fraud.LastRedemption]{value: rec, deadline: s.clock().Add(ttl)}
	return nil
}

func (s *MemoryStore) GetLastLocation(_ context.Context, customerID string) (*fraud.LastLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return nil, sentinel.ErrUnavailable
	}
	entry, ok := s.lastLocations[customerID]
	if !ok || s.clock().After(entry.deadline) {
		return nil, sentinel.ErrNotFound
	}
	rec := entry.value
	return &rec, nil
}

func (s *MemoryStore) SetLastLocation(_ context.Context, customerID string, rec fraud.LastLocation, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLocations[customerID] = expiring[fraud.LastLocation]{value: rec, deadline: s.clock().Add(ttl)}
	return nil
}

func (s *MemoryStore) GetLocationWindow(_ context.Context, customerID string) ([]fraud.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return nil, sentinel.ErrUnavailable
	}
	window := s.windows[customerID]
	out := make([]fraud.Location, len(window))
	copy(out, window)
	return out, nil
}

func (s *MemoryStore) AppendLocation(_ context.Context, customerID string, loc fraud.Location, window int, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := append([]fraud.Location{loc}, s.windows[customerID]...)
	if len(updated) > window {
		updated = updated[:window]
	}
	s.windows[customerID] = updated
	return nil
}
