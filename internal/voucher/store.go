package voucher

import "context"

// Store is the external voucher store contract this core consumes. The store
// is responsible for atomicity: SetState is a compare-and-swap on the current
// state and IncrementRedemption is an atomic counter update, since concurrent
// redemption attempts for the same voucher must not double-count or race past
// Claimed -> Redeemed.
//
// Implementations return sentinel.ErrNotFound for unknown vouchers and
// sentinel.ErrConflict when a conditional update loses to a concurrent
// writer.
type Store interface {
	GetVoucher(ctx context.Context, id string) (*Voucher, error)
	SetState(ctx context.Context, id string, from, to State) error
	IncrementRedemption(ctx context.Context, id string) error
}
