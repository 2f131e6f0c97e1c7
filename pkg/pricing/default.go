package pricing

import (
	"context"

	"github.com/opscart/k8s-waste-audit/pkg/models"
)

// Conservative list-price averages per month.
const (
	DefaultMemoryPerGiBMonth    = 7.20
	DefaultCPUPerCoreMonth      = 21.60
	DefaultStoragePerGiBMonth   = 0.10
	DefaultLoadBalancerPerMonth = 20.00
)

// DefaultProvider provides fallback pricing for on-prem or unknown clouds
type DefaultProvider struct {
	model models.PricingModel
}

func NewDefaultProvider() *DefaultProvider {
	return &DefaultProvider{
		model: models.PricingModel{
			Provider:             "default",
			Region:               "unknown",
			Currency:             "USD",
			MemoryPerGiBMonth:    DefaultMemoryPerGiBMonth,
			CPUPerCoreMonth:      DefaultCPUPerCoreMonth,
			StoragePerGiBMonth:   DefaultStoragePerGiBMonth,
			LoadBalancerPerMonth: DefaultLoadBalancerPerMonth,
		},
	}
}

func (d *DefaultProvider) Name() string {
	return "default"
}

func (d *DefaultProvider) GetPricing(ctx context.Context) (*models.PricingModel, error) {
	m := d.model
	return &m, nil
}
