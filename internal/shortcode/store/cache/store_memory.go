package cache

import (
	"context"
	"sync"
	"time"

	"vouchercore/internal/shortcode"
	"vouchercore/pkg/platform/sentinel"
)

// Clock supplies the current time; injected for testability.
type Clock func() time.Time

// MemoryStore is an in-memory short code cache for tests and single-node
// development. Honors TTLs against the injected clock.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   Clock
}

type memoryEntry struct {
	record   shortcode.Record
	deadline time.Time // zero = no expiry
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

// NewMemoryStore constructs an in-memory short code cache.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, code string) (*shortcode.Record, error) {
	s.mu.RLock()
	entry, ok := s.entries[code]
	s.mu.RUnlock()

	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !entry.deadline.IsZero() && s.clock().After(entry.deadline) {
		s.mu.Lock()
		delete(s.entries, code)
		s.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}

	record := entry.record
	return &record, nil
}

func (s *MemoryStore) Set(_ context.Context, record *shortcode.Record, ttl time.Duration) error {
	entry := memoryEntry{record: *record}
	if ttl > 0 {
		entry.deadline = s.clock().Add(ttl)
	}
	s.mu.Lock()
	s.entries[record.Code] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	delete(s.entries, code)
	s.mu.Unlock()
	return nil
}
