package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RedemptionClaims is the payload carried by a signed redemption token.
// Only opaque identifiers are embedded; no personally identifying data.
// Immutable once issued.
type RedemptionClaims struct {
	VoucherID  string
	CustomerID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// tokenClaims is the wire shape of the JWT payload.
type tokenClaims struct {
	VoucherID  string `json:"voucher_id"`
	CustomerID string `json:"customer_id"`
	jwt.RegisteredClaims
}

func (c *tokenClaims) toRedemptionClaims() *RedemptionClaims {
	rc := &RedemptionClaims{
		VoucherID:  c.VoucherID,
		CustomerID: c.CustomerID,
	}
	if c.IssuedAt != nil {
		rc.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		rc.ExpiresAt = c.ExpiresAt.Time
	}
	return rc
}

// OfflineResult is the outcome of a relaxed offline verification. Valid is
// false when the signature fails or the claims are stale; Reason explains
// why for terminal-side logging.
type OfflineResult struct {
	Valid  bool
	Claims *RedemptionClaims
	Reason string
}
