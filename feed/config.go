package feed

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Enabled      bool          `envconfig:"HYDRATION_FEED_ENABLED" default:"false"`
	RedisAddress string        `envconfig:"HYDRATION_REDIS_ADDRESS" default:"localhost:6379"`
	RedisDB      int           `envconfig:"HYDRATION_REDIS_DB" default:"0"`
	Stream       string        `envconfig:"HYDRATION_FEED_STREAM" default:"hydration:device-updates"`
	Group        string        `envconfig:"HYDRATION_FEED_GROUP" default:"hydration"`
	Consumer     string        `envconfig:"HYDRATION_FEED_CONSUMER" default:"hydration-1"`
	BatchSize    int64         `envconfig:"HYDRATION_FEED_BATCH_SIZE" default:"50"`
	Block        time.Duration `envconfig:"HYDRATION_FEED_BLOCK" default:"5s"`
	MinBackoff   time.Duration `envconfig:"HYDRATION_FEED_MIN_BACKOFF" default:"1s"`
	MaxBackoff   time.Duration `envconfig:"HYDRATION_FEED_MAX_BACKOFF" default:"30s"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
