package static

import (
	"context"
	"sync"

	"vouchercore/internal/shortcode"
	"vouchercore/pkg/platform/sentinel"
)

// MemoryStore is an in-memory static code registry for tests. Create is
// atomic under the mutex, matching the durable store's conflict semantics.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]string // code -> voucher id
}

// NewMemoryStore constructs an in-memory static code registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]string)}
}

func (s *MemoryStore) Create(_ context.Context, code, voucherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.codes[code]; exists {
		return sentinel.ErrConflict
	}
	s.codes[code] = voucherID
	return nil
}

func (s *MemoryStore) Find(_ context.Context, code string) (*shortcode.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	voucherID, ok := s.codes[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &shortcode.Record{
		Code:      code,
		VoucherID: voucherID,
		Kind:      shortcode.KindStatic,
	}, nil
}
