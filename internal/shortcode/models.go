package shortcode

import "time"

// Kind distinguishes the two persistence tiers a short code can live in.
type Kind string

const (
	// KindDynamic codes are ephemeral: bound to one customer, short TTL,
	// cache-only.
	KindDynamic Kind = "dynamic"

	// KindStatic codes are permanent: bound to a print campaign, no customer,
	// no expiry, and must exist in the durable registry as well as the cache.
	KindStatic Kind = "static"
)

// Record is a resolved short code. A code string is unique within its storage
// tier at any instant.
type Record struct {
	Code       string     `json:"code"`
	VoucherID  string     `json:"voucher_id"`
	Kind       Kind       `json:"kind"`
	CustomerID string     `json:"customer_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether a dynamic record is past its logical expiry at the
// given instant. Static records never expire.
func (r *Record) Expired(now time.Time) bool {
	return r.Kind == KindDynamic && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
