package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"vouchercore/internal/fraud"
	"vouchercore/internal/platform/postgres"
	"vouchercore/internal/platform/redis"
	"vouchercore/internal/shortcode"
)

// TokenConfig carries the signing key pair and issuance TTL. Keys are
// PEM-encoded configuration inputs, never hardcoded; a verify-only deployment
// (provider-side terminal service) leaves PrivateKeyPEM empty.
type TokenConfig struct {
	PrivateKeyPEM string        `env:"PRIVATE_KEY_PEM"`
	PublicKeyPEM  string        `env:"PUBLIC_KEY_PEM"`
	TTL           time.Duration `env:"TTL" envDefault:"5m"`
	OfflineMaxAge time.Duration `env:"OFFLINE_MAX_AGE" envDefault:"24h"`
}

// Config aggregates every knob the core reads, parsed from the environment in
// one place so nothing reaches for os.Getenv at depth.
type Config struct {
	Redis     redis.Config     `envPrefix:"REDIS_"`
	Postgres  postgres.Config  `envPrefix:"POSTGRES_"`
	Token     TokenConfig      `envPrefix:"TOKEN_"`
	ShortCode shortcode.Config `envPrefix:"SHORTCODE_"`
	Fraud     fraud.Config     `envPrefix:"FRAUD_"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
