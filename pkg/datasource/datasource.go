// Package datasource reads historical pod usage from Prometheus.
package datasource

import (
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	PrometheusURL string        `mapstructure:"url"`
	LookbackDays  int           `mapstructure:"lookback-days"`
	Quantile      float64       `mapstructure:"quantile"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// DefaultConfig samples the 95th percentile over one week.
func DefaultConfig() Config {
	return Config{
		LookbackDays: 7,
		Quantile:     0.95,
		Timeout:      30 * time.Second,
	}
}

// Validate checks the window and quantile. An empty URL is valid and means
// Prometheus is not used.
func (c Config) Validate() error {
	if c.LookbackDays < 1 || c.LookbackDays > 90 {
		return errors.Errorf("lookback days must be between 1 and 90, got %d", c.LookbackDays)
	}
	if c.Quantile <= 0 || c.Quantile > 1 {
		return errors.Errorf("quantile must be in (0, 1], got %g", c.Quantile)
	}
	return nil
}
