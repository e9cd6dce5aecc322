package thresholds

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

type Config struct {
	OverrideFile string `envconfig:"HYDRATION_THRESHOLDS_FILE"`
	Strict       bool   `envconfig:"HYDRATION_THRESHOLDS_STRICT" default:"false"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewTable loads the threshold table for the service. Coverage issues are fatal in
// strict mode and reported as warnings otherwise.
func NewTable(cfg *Config, logger *zap.SugaredLogger) (*Table, error) {
	var override []byte
	if cfg.OverrideFile != "" {
		data, err := os.ReadFile(cfg.OverrideFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read thresholds override: %w", err)
		}
		override = data
	}

	table, err := Load(override, cfg.Strict)
	if err != nil {
		return nil, err
	}

	for _, issue := range table.Coverage() {
		logger.Warnw("threshold bands do not cover the indicator domain, values in this interval classify as normal",
			"group", issue.Group,
			"indicator", issue.Indicator,
			"kind", issue.Kind,
			"interval", issue.Interval.String(),
		)
	}

	return table, nil
}
