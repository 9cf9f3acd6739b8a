// Package redemption composes credential resolution, fraud screening, and the
// lifecycle transition into the single operation that records a redemption.
package redemption

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"vouchercore/internal/fraud"
	"vouchercore/internal/shortcode"
	"vouchercore/internal/token"
	"vouchercore/internal/voucher"
	dErrors "vouchercore/pkg/domain-errors"
	"vouchercore/pkg/platform/sentinel"
)

// Clock supplies the current time; injected for deterministic tests.
type Clock func() time.Time

// Result is the outcome of a committed redemption. Fraud is always attached
// so callers (e.g. an admin dashboard) can surface advisory findings.
type Result struct {
	Voucher *voucher.Voucher
	Fraud   *fraud.Result
}

// Service is the redemption orchestrator.
type Service struct {
	tokens   *token.Service
	codes    *shortcode.Service
	fraud    *fraud.Engine
	vouchers voucher.Store
	clock    Clock
	logger   *slog.Logger
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

// WithLogger sets the logger used for degraded fraud screening and
// best-effort invalidation reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a redemption orchestrator.
func New(
	tokens *token.Service,
	codes *shortcode.Service,
	engine *fraud.Engine,
	vouchers voucher.Store,
	opts ...Option,
) (*Service, error) {
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	if codes == nil {
		return nil, errors.New("short code service is required")
	}
	if engine == nil {
		return nil, errors.New("fraud engine is required")
	}
	if vouchers == nil {
		return nil, errors.New("voucher store is required")
	}

	s := &Service{
		tokens:   tokens,
		codes:    codes,
		fraud:    engine,
		vouchers: vouchers,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Redeem resolves the presented credential to a voucher, screens the attempt
// for fraud signals (advisory, never blocking), validates the Claimed ->
// Redeemed transition, and commits the redemption. Unresolvable or invalid
// credentials fail fast with a typed error and are not counted as a fraud
// signal.
func (s *Service) Redeem(ctx context.Context, credential, customerID string, location *fraud.Location) (*Result, error) {
	if credential == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential is required")
	}
	if customerID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "customer id is required")
	}

	voucherID, dynamicCode, err := s.resolveCredential(ctx, credential, customerID)
	if err != nil {
		return nil, err
	}

	v, err := s.vouchers.GetVoucher(ctx, voucherID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "voucher not found").
				WithMeta("voucher_id", voucherID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load voucher").
			WithMeta("voucher_id", voucherID).
			WithMeta("customer_id", customerID).
			WithMeta("operation", "Redeem")
	}

	fraudResult := s.screen(ctx, &fraud.RedemptionAttempt{
		VoucherID:  v.ID,
		CustomerID: customerID,
		ProviderID: v.ProviderID,
		Location:   location,
		Timestamp:  s.clock(),
	})

	if err := voucher.ValidateTransition(v.State, voucher.StateRedeemed); err != nil {
		return nil, err
	}

	if err := s.vouchers.SetState(ctx, v.ID, v.State, voucher.StateRedeemed); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "redemption lost to a concurrent attempt").
				WithMeta("voucher_id", v.ID)
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "voucher not found").
				WithMeta("voucher_id", v.ID)
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "commit state transition").
				WithMeta("voucher_id", v.ID).
				WithMeta("customer_id", customerID).
				WithMeta("operation", "Redeem")
		}
	}

	if err := s.vouchers.IncrementRedemption(ctx, v.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "increment redemption counter").
			WithMeta("voucher_id", v.ID).
			WithMeta("customer_id", customerID).
			WithMeta("operation", "Redeem")
	}

	if dynamicCode != "" {
		s.codes.Invalidate(ctx, dynamicCode)
	}

	v.State = voucher.StateRedeemed
	v.RedemptionCount++
	return &Result{Voucher: v, Fraud: fraudResult}, nil
}

// resolveCredential maps the presented credential to a voucher id. It returns
// the dynamic code to invalidate on success, when one was used.
func (s *Service) resolveCredential(ctx context.Context, credential, customerID string) (voucherID, dynamicCode string, err error) {
	if isTokenShaped(credential) {
		claims, err := s.tokens.Verify(credential)
		if err != nil {
			return "", "", err
		}
		if claims.CustomerID != customerID {
			return "", "", dErrors.New(dErrors.CodeUnauthorized, "token is bound to a different customer").
				WithMeta("voucher_id", claims.VoucherID)
		}
		return claims.VoucherID, "", nil
	}

	record, err := s.codes.Lookup(ctx, credential)
	if err != nil {
		return "", "", err
	}
	if record.Kind == shortcode.KindDynamic {
		if record.CustomerID != customerID {
			return "", "", dErrors.New(dErrors.CodeUnauthorized, "code is bound to a different customer").
				WithMeta("voucher_id", record.VoucherID)
		}
		return record.VoucherID, record.Code, nil
	}
	return record.VoucherID, "", nil
}

// screen runs the advisory fraud check. Engine failure degrades to an empty
// advisory result; it never changes whether the redemption commits.
func (s *Service) screen(ctx context.Context, attempt *fraud.RedemptionAttempt) *fraud.Result {
	result, err := s.fraud.CheckRedemption(ctx, attempt)
	if err != nil {
		s.logger.Warn("fraud screening degraded",
			slog.String("voucher_id", attempt.VoucherID),
			slog.String("customer_id", attempt.CustomerID),
			slog.Any("error", err))
		return &fraud.Result{Allowed: true, Flags: []fraud.Flag{}}
	}
	return result
}

// isTokenShaped reports whether a credential looks like a compact signed
// token (three non-empty dot-separated segments). Short code alphabets
// exclude '.', so the classification is unambiguous.
func isTokenShaped(credential string) bool {
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
