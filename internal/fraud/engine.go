// Package fraud scores redemption attempts with independent heuristics over a
// customer's rolling history. The engine is advisory by policy: it annotates
// attempts with flags and a risk score but never blocks a redemption.
package fraud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	dErrors "vouchercore/pkg/domain-errors"
	"vouchercore/pkg/platform/sentinel"
)

var (
	flagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchercore_fraud_flags_total",
		Help: "Fraud flags raised by heuristic type and severity",
	}, []string{"type", "severity"})

	checksDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchercore_fraud_checks_degraded_total",
		Help: "Heuristic checks skipped because a history store read failed",
	}, []string{"check"})

	trailWriteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchercore_fraud_trail_write_failures_total",
		Help: "Best-effort audit trail writes that failed",
	}, []string{"trail"})
)

// Clock supplies the current time; injected for deterministic tests.
type Clock func() time.Time

// HistoryStore holds the short rolling history the heuristics consult, keyed
// by customer identity. Reads return sentinel.ErrNotFound when no history
// exists yet. Writes are last-write-wins: two concurrent attempts for the
// same customer may race here, which is acceptable because the engine is
// advisory only.
type HistoryStore interface {
	GetLastRedemption(ctx context.Context, customerID string) (*LastRedemption, error)
	SetLastRedemption(ctx context.Context, customerID string, rec LastRedemption, ttl time.Duration) error
	GetLastLocation(ctx context.Context, customerID string) (*LastLocation, error)
	SetLastLocation(ctx context.Context, customerID string, rec LastLocation, ttl time.Duration) error
	GetLocationWindow(ctx context.Context, customerID string) ([]Location, error)
	AppendLocation(ctx context.Context, customerID string, loc Location, window int, ttl time.Duration) error
}

// TrailStore appends flagged attempts to capped audit trails. Writes are
// independent and best-effort; the engine logs failures and moves on.
type TrailStore interface {
	AppendCustomer(ctx context.Context, customerID string, entry TrailEntry) error
	AppendProvider(ctx context.Context, providerID string, entry TrailEntry) error
	AppendHighRisk(ctx context.Context, entry TrailEntry) error
}

// Engine runs the three heuristics and assembles the advisory result.
type Engine struct {
	history HistoryStore
	trails  TrailStore
	cfg     Config
	clock   Clock
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets the logger used for degraded checks and trail failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New constructs a fraud detection engine.
func New(history HistoryStore, trails TrailStore, cfg Config, opts ...Option) (*Engine, error) {
	if history == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if trails == nil {
		return nil, fmt.Errorf("trail store is required")
	}

	e := &Engine{
		history: history,
		trails:  trails,
		cfg:     cfg,
		clock:   time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// CheckRedemption screens one attempt. The three heuristics run concurrently
// and independently; a store failure inside any of them degrades that
// heuristic to "no flag" rather than failing the attempt. The result always
// carries Allowed == true.
func (e *Engine) CheckRedemption(ctx context.Context, attempt *RedemptionAttempt) (*Result, error) {
	if attempt == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "attempt is required")
	}
	if attempt.CustomerID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "customer id is required")
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = e.clock()
	}

	slots := make([]*Flag, 3)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { slots[0] = e.checkRapidRedemption(gctx, attempt); return nil })
	g.Go(func() error { slots[1] = e.checkVelocity(gctx, attempt); return nil })
	g.Go(func() error { slots[2] = e.checkLocationAnomaly(gctx, attempt); return nil })
	_ = g.Wait() // checks never return errors; degradations are handled inline

	flags := make([]Flag, 0, 3)
	for _, f := range slots {
		if f != nil {
			flags = append(flags, *f)
			flagsTotal.WithLabelValues(string(f.Type), string(f.Severity)).Inc()
		}
	}

	e.updateHistory(ctx, attempt)

	score := 0
	anyHigh := false
	for _, f := range flags {
		score += f.Severity.scoreWeight()
		if f.Severity == SeverityHigh {
			anyHigh = true
		}
	}
	if score > 100 {
		score = 100
	}

	result := &Result{
		Allowed:        true, // soft-validation policy: advisory, never blocking
		Flags:          flags,
		RiskScore:      score,
		RequiresReview: anyHigh || score > e.cfg.HighRiskThreshold,
	}

	if len(flags) > 0 {
		e.appendTrails(ctx, attempt, result)
	}

	return result, nil
}

// checkRapidRedemption compares the attempt against the customer's
// immediately prior redemption.
func (e *Engine) checkRapidRedemption(ctx context.Context, attempt *RedemptionAttempt) *Flag {
	last, err := e.history.GetLastRedemption(ctx, attempt.CustomerID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			e.degrade("rapid_redemption", attempt.CustomerID, err)
		}
		return nil
	}

	gap := attempt.Timestamp.Sub(last.Timestamp)
	if gap < 0 || gap >= e.cfg.RapidWindow {
		return nil
	}

	severity := SeverityMedium
	if gap < e.cfg.RapidHighGap {
		severity = SeverityHigh
	}
	return &Flag{
		Type:     FlagRapidRedemption,
		Severity: severity,
		Message:  fmt.Sprintf("redemption %s after previous one", gap.Round(time.Second)),
		Details: map[string]string{
			"gap":              gap.String(),
			"previous_voucher": last.VoucherID,
		},
	}
}

// checkVelocity compares the attempt's location against the prior located
// redemption, but only across distinct providers: same-provider repeats are
// expected and not travel anomalies.
func (e *Engine) checkVelocity(ctx context.Context, attempt *RedemptionAttempt) *Flag {
	if attempt.Location == nil || attempt.ProviderID == "" {
		return nil
	}

	last, err := e.history.GetLastLocation(ctx, attempt.CustomerID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			e.degrade("velocity", attempt.CustomerID, err)
		}
		return nil
	}
	if last.ProviderID == attempt.ProviderID {
		return nil
	}

	dist := distanceKm(last.Location, *attempt.Location)
	elapsed := attempt.Timestamp.Sub(last.Timestamp)
	if elapsed <= 0 {
		return &Flag{
			Type:     FlagVelocity,
			Severity: SeverityHigh,
			Message:  "simultaneous redemptions at distinct locations",
			Details: map[string]string{
				"distance_km":       fmt.Sprintf("%.1f", dist),
				"previous_provider": last.ProviderID,
			},
		}
	}

	speedKmh := dist / elapsed.Hours()
	if speedKmh <= e.cfg.VelocityKmh {
		return nil
	}

	severity := SeverityMedium
	if speedKmh > e.cfg.VelocityHighKmh {
		severity = SeverityHigh
	}
	return &Flag{
		Type:     FlagVelocity,
		Severity: severity,
		Message:  fmt.Sprintf("implied travel speed %.0f km/h between providers", speedKmh),
		Details: map[string]string{
			"speed_kmh":         fmt.Sprintf("%.1f", speedKmh),
			"distance_km":       fmt.Sprintf("%.1f", dist),
			"previous_provider": last.ProviderID,
		},
	}
}

// checkLocationAnomaly compares the attempt's location against the rolling
// window of recent locations. Below the minimum sample count the check only
// seeds history and never flags.
func (e *Engine) checkLocationAnomaly(ctx context.Context, attempt *RedemptionAttempt) *Flag {
	if attempt.Location == nil {
		return nil
	}

	window, err := e.history.GetLocationWindow(ctx, attempt.CustomerID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			e.degrade("location_anomaly", attempt.CustomerID, err)
		}
		return nil
	}
	if len(window) < e.cfg.AnomalyMinSamples {
		return nil
	}

	var total float64
	for _, loc := range window {
		total += distanceKm(loc, *attempt.Location)
	}
	mean := total / float64(len(window))
	if mean <= e.cfg.AnomalyMeanKm {
		return nil
	}

	severity := SeverityMedium
	if mean > e.cfg.AnomalyHighKm {
		severity = SeverityHigh
	}
	return &Flag{
		Type:     FlagLocationAnomaly,
		Severity: severity,
		Message:  fmt.Sprintf("location %.0f km from recent history on average", mean),
		Details: map[string]string{
			"mean_distance_km": fmt.Sprintf("%.1f", mean),
			"samples":          fmt.Sprintf("%d", len(window)),
		},
	}
}

// updateHistory records the attempt for future checks. Last-write-wins; a
// failed write narrows the next check's visibility, never the outcome.
func (e *Engine) updateHistory(ctx context.Context, attempt *RedemptionAttempt) {
	err := e.history.SetLastRedemption(ctx, attempt.CustomerID, LastRedemption{
		Timestamp:  attempt.Timestamp,
		ProviderID: attempt.ProviderID,
		VoucherID:  attempt.VoucherID,
	}, e.cfg.LastRedemptionTTL)
	if err != nil {
		e.logger.Warn("fraud history update failed",
			slog.String("key", "last_redemption"),
			slog.String("customer_id", attempt.CustomerID),
			slog.Any("error", err))
	}

	if attempt.Location == nil {
		return
	}

	err = e.history.SetLastLocation(ctx, attempt.CustomerID, LastLocation{
		Location:   *attempt.Location,
		Timestamp:  attempt.Timestamp,
		ProviderID: attempt.ProviderID,
	}, e.cfg.LastLocationTTL)
	if err != nil {
		e.logger.Warn("fraud history update failed",
			slog.String("key", "last_location"),
			slog.String("customer_id", attempt.CustomerID),
			slog.Any("error", err))
	}

	err = e.history.AppendLocation(ctx, attempt.CustomerID, *attempt.Location,
		e.cfg.LocationWindow, e.cfg.LocationWindowTTL)
	if err != nil {
		e.logger.Warn("fraud history update failed",
			slog.String("key", "location_window"),
			slog.String("customer_id", attempt.CustomerID),
			slog.Any("error", err))
	}
}

// appendTrails writes the flagged attempt to the per-customer and
// per-provider trails, and to the high-risk trail when the score crosses the
// threshold. Each write is independent and best-effort.
func (e *Engine) appendTrails(ctx context.Context, attempt *RedemptionAttempt, result *Result) {
	entry := TrailEntry{
		Timestamp:  attempt.Timestamp,
		VoucherID:  attempt.VoucherID,
		CustomerID: attempt.CustomerID,
		ProviderID: attempt.ProviderID,
		RiskScore:  result.RiskScore,
		Flags:      result.Flags,
	}

	if err := e.trails.AppendCustomer(ctx, attempt.CustomerID, entry); err != nil {
		e.trailFailure("customer", err)
	}
	if attempt.ProviderID != "" {
		if err := e.trails.AppendProvider(ctx, attempt.ProviderID, entry); err != nil {
			e.trailFailure("provider", err)
		}
	}
	if result.RiskScore > e.cfg.HighRiskThreshold {
		if err := e.trails.AppendHighRisk(ctx, entry); err != nil {
			e.trailFailure("high_risk", err)
		}
	}
}

func (e *Engine) degrade(check, customerID string, err error) {
	checksDegradedTotal.WithLabelValues(check).Inc()
	e.logger.Warn("fraud check degraded: history unavailable",
		slog.String("check", check),
		slog.String("customer_id", customerID),
		slog.Any("error", err))
}

func (e *Engine) trailFailure(trail string, err error) {
	trailWriteFailuresTotal.WithLabelValues(trail).Inc()
	e.logger.Warn("audit trail write failed",
		slog.String("trail", trail),
		slog.Any("error", err))
}
