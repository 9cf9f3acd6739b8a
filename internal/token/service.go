// Package token signs and verifies short-lived redemption tokens used for
// QR-style presentation. Verification comes in two modes: strict (online)
// which enforces expiry, and offline which ignores expiry but bounds staleness
// by issuance age so disconnected terminals can still cap replay risk.
package token

import (
	"crypto/ecdsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "vouchercore/pkg/domain-errors"
)

const (
	// DefaultTTL bounds the validity of a freshly issued token.
	DefaultTTL = 5 * time.Minute

	// defaultOfflineMaxAge is the coarser staleness bound applied when expiry
	// is ignored: claims issued longer ago than this are rejected even if
	// nominally unexpired.
	defaultOfflineMaxAge = 24 * time.Hour
)

// Clock supplies the current time; injected for deterministic tests.
type Clock func() time.Time

// Service issues and verifies ES256-signed redemption tokens. The key pair is
// injected configuration, never process-wide state. A Service constructed
// without a private key is verify-only (the terminal-side deployment shape).
type Service struct {
	privateKey    *ecdsa.PrivateKey
	publicKey     *ecdsa.PublicKey
	clock         Clock
	offlineMaxAge time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithOfflineMaxAge overrides the issuance staleness bound used by
// VerifyOffline.
func WithOfflineMaxAge(maxAge time.Duration) Option {
	return func(s *Service) {
		if maxAge > 0 {
			s.offlineMaxAge = maxAge
		}
	}
}

// New constructs a token service from PEM-encoded key material. publicKeyPEM
// is required; privateKeyPEM may be nil for verify-only deployments.
func New(privateKeyPEM, publicKeyPEM []byte, opts ...Option) (*Service, error) {
	if len(publicKeyPEM) == 0 {
		return nil, errors.New("public key is required")
	}

	publicKey, err := jwt.ParseECPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "parse token public key")
	}

	s := &Service{
		publicKey:     publicKey,
		clock:         time.Now,
		offlineMaxAge: defaultOfflineMaxAge,
	}

	if len(privateKeyPEM) > 0 {
		privateKey, err := jwt.ParseECPrivateKeyFromPEM(privateKeyPEM)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "parse token private key")
		}
		s.privateKey = privateKey
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s, nil
}

// Generate produces a compact signed credential binding a voucher to a
// customer. ttl <= 0 falls back to DefaultTTL.
func (s *Service) Generate(voucherID, customerID string, ttl time.Duration) (string, error) {
	if s.privateKey == nil {
		return "", dErrors.New(dErrors.CodeInternal, "token service is verify-only: no signing key configured")
	}
	if voucherID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "voucher id is required")
	}
	if customerID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "customer id is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := s.clock()
	claims := tokenClaims{
		VoucherID:  voucherID,
		CustomerID: customerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign redemption token").
			WithMeta("voucher_id", voucherID)
	}
	return signed, nil
}

// Verify validates signature and expiry. Online verification is strict: any
// expiry violation is rejected.
func (s *Service) Verify(tokenString string) (*RedemptionClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, dErrors.Wrap(err, dErrors.CodeExpired, "token has expired")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token signature")
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed token")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
		}
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims.toRedemptionClaims(), nil
}

// VerifyOffline validates the signature but ignores expiry, applying the
// coarser issuance staleness bound instead. It never returns a domain error
// for stale or invalid tokens; the result reports validity so a disconnected
// terminal can act on it locally.
func (s *Service) VerifyOffline(tokenString string) (*OfflineResult, error) {
	claims := &tokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(tokenString, claims, s.keyFunc); err != nil {
		reason := "invalid signature"
		if errors.Is(err, jwt.ErrTokenMalformed) {
			reason = "malformed token"
		}
		return &OfflineResult{Valid: false, Reason: reason}, nil
	}

	if claims.IssuedAt == nil {
		return &OfflineResult{Valid: false, Reason: "missing issued-at claim"}, nil
	}
	if s.clock().Sub(claims.IssuedAt.Time) > s.offlineMaxAge {
		return &OfflineResult{Valid: false, Reason: "token issuance too old for offline acceptance"}, nil
	}

	return &OfflineResult{Valid: true, Claims: claims.toRedemptionClaims()}, nil
}

// Decode returns the claims without any verification. Diagnostics and logging
// only; callers must never trust its output for authorization decisions.
// Returns nil on any parse failure.
func (s *Service) Decode(tokenString string) *RedemptionClaims {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	return claims.toRedemptionClaims()
}

func (s *Service) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
		return nil, jwt.ErrTokenUnverifiable
	}
	return s.publicKey, nil
}
