package shortcode

import "time"

// DefaultAlphabet excludes visually ambiguous glyphs (I, O, 0, 1) to reduce
// human transcription error.
const DefaultAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Config groups the code-shape and TTL knobs so tests can exercise boundary
// values deterministically. Both length and alphabet are external
// configuration inputs, not constants baked into the service.
type Config struct {
	Length     int           `env:"LENGTH" envDefault:"8"`
	Alphabet   string        `env:"ALPHABET" envDefault:"ABCDEFGHJKLMNPQRSTUVWXYZ23456789"`
	DynamicTTL time.Duration `env:"DYNAMIC_TTL" envDefault:"5m"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Length:     8,
		Alphabet:   DefaultAlphabet,
		DynamicTTL: 5 * time.Minute,
	}
}
