// Package config loads settings from defaults, an optional YAML file,
// WASTE_AUDIT_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"strings"

	"github.com/opscart/k8s-waste-audit/pkg/archive"
	"github.com/opscart/k8s-waste-audit/pkg/datasource"
	"github.com/opscart/k8s-waste-audit/pkg/evaluator"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/pricing"
	"github.com/opscart/k8s-waste-audit/pkg/reporter"
	"github.com/opscart/k8s-waste-audit/pkg/storage"
	"github.com/opscart/k8s-waste-audit/pkg/submit"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. WASTE_AUDIT_SUBMIT_TOKEN.
const EnvPrefix = "WASTE_AUDIT"

// Config holds application configuration
type Config struct {
	ClusterName string `mapstructure:"cluster-name"`

	Pricing    Pricing              `mapstructure:"pricing"`
	Thresholds evaluator.Thresholds `mapstructure:"thresholds"`
	Heuristic  reporter.Heuristic   `mapstructure:"heuristic"`

	Prometheus datasource.Config `mapstructure:"prometheus"`
	Storage    storage.Config    `mapstructure:"storage"`
	Submit     submit.Config     `mapstructure:"submit"`
	Archive    archive.Config    `mapstructure:"archive"`

	// NoTelemetry suppresses the anonymous beacon.
	NoTelemetry bool `mapstructure:"no-telemetry"`
}

// Pricing selects the provider and overrides individual rates. Zero rates
// keep the provider's value.
type Pricing struct {
	Provider string `mapstructure:"provider"`
	Region   string `mapstructure:"region"`
	Currency string `mapstructure:"currency"`

	MemoryPerGiBMonth    float64 `mapstructure:"memory-per-gib-month"`
	CPUPerCoreMonth      float64 `mapstructure:"cpu-per-core-month"`
	StoragePerGiBMonth   float64 `mapstructure:"storage-per-gib-month"`
	LoadBalancerPerMonth float64 `mapstructure:"load-balancer-per-month"`
}

// ProviderConfig converts the settings for pricing.NewProvider.
func (p Pricing) ProviderConfig() *pricing.Config {
	return &pricing.Config{
		Provider: p.Provider,
		Region:   p.Region,
		Overrides: models.PricingModel{
			Currency:             p.Currency,
			MemoryPerGiBMonth:    p.MemoryPerGiBMonth,
			CPUPerCoreMonth:      p.CPUPerCoreMonth,
			StoragePerGiBMonth:   p.StoragePerGiBMonth,
			LoadBalancerPerMonth: p.LoadBalancerPerMonth,
		},
	}
}

// New creates a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers every key so that environment variables apply to
// all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cluster-name", "default")

	v.SetDefault("pricing.provider", "")
	v.SetDefault("pricing.region", "")
	v.SetDefault("pricing.currency", "")
	v.SetDefault("pricing.memory-per-gib-month", 0.0)
	v.SetDefault("pricing.cpu-per-core-month", 0.0)
	v.SetDefault("pricing.storage-per-gib-month", 0.0)
	v.SetDefault("pricing.load-balancer-per-month", 0.0)

	t := evaluator.DefaultThresholds()
	v.SetDefault("thresholds.live-flag-ratio", t.LiveFlagRatio)
	v.SetDefault("thresholds.fallback-memory-flag-ratio", t.FallbackMemFlagRatio)
	v.SetDefault("thresholds.fallback-cpu-flag-ratio", t.FallbackCPUFlagRatio)
	v.SetDefault("thresholds.headroom", t.Headroom)

	h := reporter.DefaultHeuristic()
	v.SetDefault("heuristic.node-monthly-cost", h.NodeMonthlyCost)
	v.SetDefault("heuristic.pod-monthly-cost", h.PodMonthlyCost)
	v.SetDefault("heuristic.waste-fraction", h.WasteFraction)
	v.SetDefault("heuristic.cost-multiplier", h.CostMultiplier)

	p := datasource.DefaultConfig()
	v.SetDefault("prometheus.url", "")
	v.SetDefault("prometheus.lookback-days", p.LookbackDays)
	v.SetDefault("prometheus.quantile", p.Quantile)
	v.SetDefault("prometheus.timeout", p.Timeout)

	v.SetDefault("storage.driver", storage.DriverPostgres)
	v.SetDefault("storage.dsn", "")

	v.SetDefault("submit.url", "")
	v.SetDefault("submit.token", "")
	v.SetDefault("submit.timeout", "5s")
	v.SetDefault("submit.telemetry-url", "")

	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.access-key", "")
	v.SetDefault("archive.secret-key", "")
	v.SetDefault("archive.region", "")
	v.SetDefault("archive.secure", true)
	v.SetDefault("archive.prefix", "reports")

	v.SetDefault("no-telemetry", false)
}

// Load reads the optional config file and decodes all settings.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "can't read config file %s", file)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "can't decode configuration")
	}

	return &c, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return errors.Wrap(err, "invalid thresholds")
	}

	for name, price := range map[string]float64{
		"memory":        c.Pricing.MemoryPerGiBMonth,
		"cpu":           c.Pricing.CPUPerCoreMonth,
		"storage":       c.Pricing.StoragePerGiBMonth,
		"load balancer": c.Pricing.LoadBalancerPerMonth,
	} {
		if price < 0 {
			return errors.Errorf("%s price must not be negative", name)
		}
	}

	if c.Heuristic.WasteFraction < 0 || c.Heuristic.WasteFraction > 1 {
		return errors.New("heuristic waste fraction must be between 0 and 1")
	}
	if c.Heuristic.NodeMonthlyCost < 0 || c.Heuristic.PodMonthlyCost < 0 {
		return errors.New("heuristic costs must not be negative")
	}

	if err := c.Prometheus.Validate(); err != nil {
		return errors.Wrap(err, "invalid prometheus settings")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	return nil
}
