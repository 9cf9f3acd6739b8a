package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: atomic create or compare-and-swap lost to an existing row
// - ErrExpired: token/code past its expiry
// - ErrMalformed: credential could not be parsed at all
// - ErrInvalidSignature: credential parsed but failed signature verification
// - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, illegal transitions), use
// pkg/domain-errors directly.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrExpired          = errors.New("expired")
	ErrMalformed        = errors.New("malformed")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnavailable      = errors.New("unavailable")
)
