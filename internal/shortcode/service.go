// Package shortcode generates and resolves human-enterable redemption codes
// in two variants: ephemeral per-customer codes held only in the cache, and
// permanent print-campaign codes backed by a durable registry.
package shortcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	dErrors "vouchercore/pkg/domain-errors"
	"vouchercore/pkg/platform/sentinel"
)

// staticCreateAttempts bounds retries when a generated static code collides
// with an existing registration.
const staticCreateAttempts = 5

// Clock supplies the current time; injected for deterministic tests.
type Clock func() time.Time

// CacheStore is the fast ephemeral tier. ttl <= 0 means no expiry.
// Implementations return sentinel.ErrNotFound for absent codes.
type CacheStore interface {
	Get(ctx context.Context, code string) (*Record, error)
	Set(ctx context.Context, record *Record, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
}

// StaticStore is the durable registry for print-campaign codes. Create must
// be atomic: it returns sentinel.ErrConflict when the code already exists.
type StaticStore interface {
	Create(ctx context.Context, code, voucherID string) error
	Find(ctx context.Context, code string) (*Record, error)
}

// Service resolves and issues short codes, cache-first with durable fallback.
type Service struct {
	cache  CacheStore
	static StaticStore
	cfg    Config
	clock  Clock
	logger *slog.Logger
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

// WithLogger sets the logger used for best-effort failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a short code service.
func New(cache CacheStore, static StaticStore, cfg Config, opts ...Option) (*Service, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if static == nil {
		return nil, fmt.Errorf("static store is required")
	}
	if cfg.Length <= 0 {
		return nil, fmt.Errorf("code length must be positive")
	}
	if len(cfg.Alphabet) < 2 {
		return nil, fmt.Errorf("code alphabet must contain at least two characters")
	}

	s := &Service{
		cache:  cache,
		static: static,
		cfg:    cfg,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Generate draws a fresh code and registers it in the tier matching kind.
// Dynamic codes require a customer and live only in the cache with the
// configured TTL; static codes are durably registered first and cached
// without expiry.
func (s *Service) Generate(ctx context.Context, voucherID, customerID string, kind Kind) (string, error) {
	if voucherID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "voucher id is required")
	}

	switch kind {
	case KindDynamic:
		if customerID == "" {
			return "", dErrors.New(dErrors.CodeBadRequest, "dynamic codes are customer-scoped: customer id is required")
		}
		code, err := s.randomCode()
		if err != nil {
			return "", err
		}
		expiresAt := s.clock().Add(s.cfg.DynamicTTL)
		record := &Record{
			Code:       code,
			VoucherID:  voucherID,
			Kind:       KindDynamic,
			CustomerID: customerID,
			ExpiresAt:  &expiresAt,
		}
		if err := s.cache.Set(ctx, record, s.cfg.DynamicTTL); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "store dynamic code").
				WithMeta("voucher_id", voucherID).
				WithMeta("customer_id", customerID)
		}
		return code, nil

	case KindStatic:
		return s.createStatic(ctx, voucherID, "")

	default:
		return "", dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown code kind %q", kind))
	}
}

// GenerateStatic registers a permanent print-campaign code. When customCode
// is non-empty it is honored verbatim and a Conflict is returned if it is
// already registered; otherwise a fresh code is drawn.
func (s *Service) GenerateStatic(ctx context.Context, voucherID, customCode string) (string, error) {
	if voucherID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "voucher id is required")
	}
	if customCode != "" && strings.ContainsAny(customCode, " \t\n") {
		return "", dErrors.New(dErrors.CodeBadRequest, "custom code must not contain whitespace")
	}
	return s.createStatic(ctx, voucherID, customCode)
}

// Lookup resolves a code cache-first. A dynamic record found past its logical
// expiry is treated as absent and evicted. On cache miss the durable registry
// is consulted (static codes only) and the cache repopulated.
func (s *Service) Lookup(ctx context.Context, code string) (*Record, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "code is required")
	}

	record, err := s.cache.Get(ctx, code)
	switch {
	case err == nil:
		if record.Expired(s.clock()) {
			s.evict(ctx, code)
			return nil, dErrors.New(dErrors.CodeNotFound, "short code not found")
		}
		return record, nil
	case errors.Is(err, sentinel.ErrNotFound):
		// fall through to the durable registry
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "short code cache lookup").
			WithMeta("operation", "Lookup")
	}

	record, err = s.static.Find(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "short code not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "static code registry lookup").
			WithMeta("operation", "Lookup")
	}

	// Repopulate the cache without expiry; failure only costs the next
	// lookup a registry round trip.
	if err := s.cache.Set(ctx, record, 0); err != nil {
		s.logger.Warn("static code cache repopulation failed",
			slog.String("code", code), slog.Any("error", err))
	}
	return record, nil
}

// Invalidate removes the cache entry after a successful redemption. Best
// effort: failure to invalidate is logged, never raised.
func (s *Service) Invalidate(ctx context.Context, code string) {
	if code == "" {
		return
	}
	s.evict(ctx, code)
}

func (s *Service) evict(ctx context.Context, code string) {
	if err := s.cache.Delete(ctx, code); err != nil {
		s.logger.Warn("short code invalidation failed",
			slog.String("code", code), slog.Any("error", err))
	}
}

func (s *Service) createStatic(ctx context.Context, voucherID, customCode string) (string, error) {
	attempts := staticCreateAttempts
	if customCode != "" {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		code := customCode
		if code == "" {
			var err error
			if code, err = s.randomCode(); err != nil {
				return "", err
			}
		}

		err := s.static.Create(ctx, code, voucherID)
		switch {
		case err == nil:
			record := &Record{Code: code, VoucherID: voucherID, Kind: KindStatic}
			if cacheErr := s.cache.Set(ctx, record, 0); cacheErr != nil {
				s.logger.Warn("static code cache priming failed",
					slog.String("code", code), slog.Any("error", cacheErr))
			}
			return code, nil
		case errors.Is(err, sentinel.ErrConflict):
			if customCode != "" {
				return "", dErrors.New(dErrors.CodeConflict, fmt.Sprintf("short code %q is already registered", customCode))
			}
			// collision on a generated code: draw again
		default:
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "register static code").
				WithMeta("voucher_id", voucherID)
		}
	}

	return "", dErrors.New(dErrors.CodeConflict, "could not draw an unused static code")
}

// randomCode draws a fixed-length code from the configured alphabet using
// crypto/rand.
func (s *Service) randomCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(s.cfg.Alphabet)))
	var b strings.Builder
	b.Grow(s.cfg.Length)
	for i := 0; i < s.cfg.Length; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "draw random code character")
		}
		b.WriteByte(s.cfg.Alphabet[n.Int64()])
	}
	return b.String(), nil
}
