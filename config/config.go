package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/tidepool-org/hydration/timeline"
)

type Config struct {
	HttpPort        uint16        `envconfig:"HYDRATION_HTTP_PORT" default:"8080" required:"true"`
	Timezone        string        `envconfig:"HYDRATION_TIMEZONE" default:"UTC"`
	SeedDemoData    bool          `envconfig:"HYDRATION_SEED_DEMO_DATA" default:"false"`
	StalenessFilter bool          `envconfig:"HYDRATION_STALENESS_FILTER" default:"true"`
	MinVolumeMl     float64       `envconfig:"HYDRATION_MIN_VOLUME_ML" default:"5"`
	MaxVolumeMl     float64       `envconfig:"HYDRATION_MAX_VOLUME_ML" default:"5000"`
	NoiseWindow     time.Duration `envconfig:"HYDRATION_NOISE_WINDOW" default:"30s"`
	NoiseTolerance  float64       `envconfig:"HYDRATION_NOISE_TOLERANCE" default:"0.2"`
	CohortCacheSize int           `envconfig:"HYDRATION_COHORT_CACHE_SIZE" default:"128"`
	CohortCacheTTL  time.Duration `envconfig:"HYDRATION_COHORT_CACHE_TTL" default:"10s"`
}

func New() *Config {
	return &Config{}
}

func NewConfig() (*Config, error) {
	cfg := New()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) LoadFromEnv() error {
	return envconfig.Process("", c)
}

func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return location, nil
}

func (c *Config) MergerOptions() timeline.Options {
	return timeline.Options{
		MinVolumeMl:    c.MinVolumeMl,
		MaxVolumeMl:    c.MaxVolumeMl,
		NoiseWindow:    c.NoiseWindow,
		NoiseTolerance: c.NoiseTolerance,
	}
}

// Clock returns the current instant. It is replaced in tests.
type Clock func() time.Time

func NewClock() Clock {
	return time.Now
}
