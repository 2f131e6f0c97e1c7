package pricing

import (
	"context"

	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/snapshot"
	"github.com/pkg/errors"
)

// NewProvider creates a pricing provider based on config or, when no
// provider is configured, on cloud detection from the snapshot's nodes.
func NewProvider(config *Config, nodes []snapshot.Node) (Provider, error) {
	provider := config.Provider
	region := config.Region

	if provider == "" {
		provider, region = DetectProvider(nodes)
	}

	switch provider {
	case "azure":
		return NewAzureProvider(region), nil
	case "aws":
		return NewAWSProvider(region), nil
	case "gcp":
		return NewGCPProvider(region), nil
	case "default":
		return NewDefaultProvider(), nil
	default:
		return nil, errors.Errorf("unknown provider: %s", provider)
	}
}

// Resolve fetches the provider model and applies the configured overrides.
func Resolve(ctx context.Context, p Provider, overrides models.PricingModel) (models.PricingModel, error) {
	m, err := p.GetPricing(ctx)
	if err != nil {
		return models.PricingModel{}, errors.Wrapf(err, "can't get %s pricing", p.Name())
	}

	if overrides.MemoryPerGiBMonth > 0 {
		m.MemoryPerGiBMonth = overrides.MemoryPerGiBMonth
	}
	if overrides.CPUPerCoreMonth > 0 {
		m.CPUPerCoreMonth = overrides.CPUPerCoreMonth
	}
	if overrides.StoragePerGiBMonth > 0 {
		m.StoragePerGiBMonth = overrides.StoragePerGiBMonth
	}
	if overrides.LoadBalancerPerMonth > 0 {
		m.LoadBalancerPerMonth = overrides.LoadBalancerPerMonth
	}
	if overrides.Currency != "" {
		m.Currency = overrides.Currency
	}

	return *m, nil
}
