package fraud

import "time"

// Config groups every heuristic threshold and retention TTL in one explicit
// struct so tests can exercise boundary values deterministically. Nothing in
// the engine reads module-level constants.
type Config struct {
	// Rapid redemption: gap below RapidWindow flags; below RapidHighGap the
	// flag is High instead of Medium.
	RapidWindow  time.Duration `env:"RAPID_WINDOW" envDefault:"5m"`
	RapidHighGap time.Duration `env:"RAPID_HIGH_GAP" envDefault:"1m"`

	// Velocity: implied travel speed across distinct providers above
	// VelocityKmh flags; above VelocityHighKmh the flag is High.
	VelocityKmh     float64 `env:"VELOCITY_KMH" envDefault:"60"`
	VelocityHighKmh float64 `env:"VELOCITY_HIGH_KMH" envDefault:"100"`

	// Location anomaly: with at least AnomalyMinSamples history points, a
	// mean distance above AnomalyMeanKm flags; above AnomalyHighKm the flag
	// is High.
	AnomalyMinSamples int     `env:"ANOMALY_MIN_SAMPLES" envDefault:"3"`
	AnomalyMeanKm     float64 `env:"ANOMALY_MEAN_KM" envDefault:"30"`
	AnomalyHighKm     float64 `env:"ANOMALY_HIGH_KM" envDefault:"50"`

	// Rolling history retention.
	LocationWindow    int           `env:"LOCATION_WINDOW" envDefault:"10"`
	LocationWindowTTL time.Duration `env:"LOCATION_WINDOW_TTL" envDefault:"168h"`
	LastRedemptionTTL time.Duration `env:"LAST_REDEMPTION_TTL" envDefault:"1h"`
	LastLocationTTL   time.Duration `env:"LAST_LOCATION_TTL" envDefault:"1h"`

	// Audit trails: capped at TrailCap most recent entries with TrailTTL
	// retention; attempts scoring above HighRiskThreshold also land on the
	// cross-cutting high-risk trail.
	TrailCap          int           `env:"TRAIL_CAP" envDefault:"100"`
	TrailTTL          time.Duration `env:"TRAIL_TTL" envDefault:"720h"`
	HighRiskThreshold int           `env:"HIGH_RISK_THRESHOLD" envDefault:"70"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RapidWindow:       5 * time.Minute,
		RapidHighGap:      time.Minute,
		VelocityKmh:       60,
		VelocityHighKmh:   100,
		AnomalyMinSamples: 3,
		AnomalyMeanKm:     30,
		AnomalyHighKm:     50,
		LocationWindow:    10,
		LocationWindowTTL: 7 * 24 * time.Hour,
		LastRedemptionTTL: time.Hour,
		LastLocationTTL:   time.Hour,
		TrailCap:          100,
		TrailTTL:          30 * 24 * time.Hour,
		HighRiskThreshold: 70,
	}
}
