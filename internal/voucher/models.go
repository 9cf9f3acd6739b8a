// Package voucher holds the lifecycle state machine and the contract this
// core consumes from the external voucher store. The voucher aggregate itself
// is owned externally; this core only validates and requests transitions.
package voucher

import (
	dErrors "vouchercore/pkg/domain-errors"
)

// Voucher is the read view of the external voucher aggregate that redemption
// needs: current state, owning provider, and the redemption counter.
type Voucher struct {
	ID              string
	ProviderID      string
	State           State
	RedemptionCount int
}

// Fields is the raw shape loaded from an external document store.
type Fields struct {
	ID              string
	ProviderID      string
	State           string
	RedemptionCount int
}

// Reconstruct builds a Voucher from stored fields, validating invariants on
// every load. There is no trusted path that bypasses this validation.
func Reconstruct(fields Fields) (*Voucher, error) {
	if fields.ID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "voucher id is required")
	}
	if fields.ProviderID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "voucher provider id is required").
			WithMeta("voucher_id", fields.ID)
	}
	if fields.RedemptionCount < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "redemption count cannot be negative").
			WithMeta("voucher_id", fields.ID)
	}
	state, err := ParseState(fields.State)
	if err != nil {
		return nil, err
	}
	return &Voucher{
		ID:              fields.ID,
		ProviderID:      fields.ProviderID,
		State:           state,
		RedemptionCount: fields.RedemptionCount,
	}, nil
}
