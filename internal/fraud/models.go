package fraud

import "time"

// Location is a WGS84 coordinate pair attached to a redemption attempt.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// RedemptionAttempt is the unit fraud evaluation operates on. Constructed per
// incoming request and discarded after evaluation; never persisted by this
// core.
type RedemptionAttempt struct {
	VoucherID  string
	CustomerID string
	ProviderID string
	Location   *Location
	Timestamp  time.Time
}

// FlagType names the heuristic that raised a flag.
type FlagType string

const (
	FlagRapidRedemption FlagType = "rapid_redemption"
	FlagVelocity        FlagType = "velocity"
	FlagLocationAnomaly FlagType = "location_anomaly"
)

// Severity grades a flag for scoring and review routing.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// scoreWeight maps severity to its risk score contribution.
func (s Severity) scoreWeight() int {
	switch s {
	case SeverityHigh:
		return 40
	case SeverityMedium:
		return 20
	case SeverityLow:
		return 10
	default:
		return 0
	}
}

// Flag is a single heuristic finding.
type Flag struct {
	Type     FlagType          `json:"type"`
	Severity Severity          `json:"severity"`
	Message  string            `json:"message"`
	Details  map[string]string `json:"details,omitempty"`
}

// Result summarizes all heuristic findings for one attempt. Allowed is always
// true under the current policy: the engine is advisory, never blocking.
type Result struct {
	Allowed        bool   `json:"allowed"`
	Flags          []Flag `json:"flags"`
	RiskScore      int    `json:"risk_score"`
	RequiresReview bool   `json:"requires_review"`
}

// LastRedemption is the most recent prior redemption for a customer, kept
// with a short TTL for the rapid-repeat heuristic.
type LastRedemption struct {
	Timestamp  time.Time `json:"timestamp"`
	ProviderID string    `json:"provider_id"`
	VoucherID  string    `json:"voucher_id"`
}

// LastLocation is the most recent prior located redemption for a customer,
// kept for the travel velocity heuristic.
type LastLocation struct {
	Location   Location  `json:"location"`
	Timestamp  time.Time `json:"timestamp"`
	ProviderID string    `json:"provider_id"`
}

// TrailEntry is the summarized form of a flagged attempt appended to the
// audit trails.
type TrailEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	VoucherID  string    `json:"voucher_id"`
	CustomerID string    `json:"customer_id"`
	ProviderID string    `json:"provider_id"`
	RiskScore  int       `json:"risk_score"`
	Flags      []Flag    `json:"flags"`
}
