package module

import (
	"time"

	"issueradar/internal/platform/config"
)

// Options controls discovery behavior. Values may also be read from env
type Options struct {
	// Forge client knobs
	Token          string
	Endpoint       string
	MaxConcurrent  int
	RequestTimeout time.Duration
	MaxRetries     int

	// Publisher knobs
	StreamKey string
	BatchSize int
	MaxLogLen int64
	SeenKey   string

	// Strategy table override, JSON array of strategy objects
	StrategiesJSON string

	// Seen-set maintenance
	SweepInterval time.Duration
	SeenRetention time.Duration

	StatsEvery time.Duration
}

// FromConfig reads options using DISCOVERY_ prefix. The tuning knobs fall
// back to their bare names, and the forge token falls back to the bare
// API_TOKEN the rest of the toolchain uses
func FromConfig(cfg config.Conf) Options {
	d := cfg.Prefix("DISCOVERY_")
	token := cfg.MayString("FORGE_TOKEN", "")
	if token == "" {
		token = cfg.MayString("API_TOKEN", "")
	}
	return Options{
		Token:          token,
		Endpoint:       d.MayString("ENDPOINT", "https://api.github.com/graphql"),
		MaxConcurrent:  d.MayInt("MAX_CONCURRENT", cfg.MayInt("MAX_CONCURRENT", 5)),
		RequestTimeout: d.MayDuration("REQUEST_TIMEOUT", cfg.MayDuration("REQUEST_TIMEOUT", 30*time.Second)),
		MaxRetries:     d.MayInt("MAX_RETRIES", 3),
		StreamKey:      d.MayString("STREAM_KEY", "issues:discovered"),
		BatchSize:      d.MayInt("BATCH_SIZE", cfg.MayInt("BATCH_SIZE", 100)),
		MaxLogLen:      int64(d.MayInt("MAX_LOG_LEN", cfg.MayInt("MAX_LOG_LEN", 100_000))),
		SeenKey:        d.MayString("SEEN_KEY", "issues:seen_urls"),
		StrategiesJSON: d.MayString("STRATEGIES", ""),
		SweepInterval:  d.MayDuration("SWEEP_INTERVAL", 24*time.Hour),
		SeenRetention:  d.MayDuration("SEEN_RETENTION", 30*24*time.Hour),
		StatsEvery:     d.MayDuration("STATS_EVERY", time.Minute),
	}
}
