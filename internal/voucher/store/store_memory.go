package store

import (
	"context"
	"sync"

	"vouchercore/internal/voucher"
	"vouchercore/pkg/platform/sentinel"
)

// MemoryStore is an in-memory voucher store for tests. The mutex gives
// SetState the same compare-and-swap semantics the Postgres store gets from
// conditional UPDATEs.
type MemoryStore struct {
	mu       sync.Mutex
	vouchers map[string]*voucher.Voucher
}

// NewMemoryStore constructs an in-memory voucher store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vouchers: make(map[string]*voucher.Voucher)}
}

// Put seeds a voucher. Test helper; the external voucher service owns writes
// in production.
func (s *MemoryStore) Put(v *voucher.Voucher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *v
	s.vouchers[v.ID] = &copied
}

func (s *MemoryStore) GetVoucher(_ context.Context, id string) (*voucher.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (s *MemoryStore) SetState(_ context.Context, id string, from, to voucher.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if v.State != from {
		return sentinel.ErrConflict
	}
	v.State = to
	return nil
}

func (s *MemoryStore) IncrementRedemption(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	v.RedemptionCount++
	return nil
}
