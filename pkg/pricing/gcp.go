package pricing

import (
	"context"

	"github.com/opscart/k8s-waste-audit/pkg/models"
)

// GCPProvider implements GCP GKE pricing
type GCPProvider struct {
	region string
}

func NewGCPProvider(region string) *GCPProvider {
	return &GCPProvider{region: region}
}

func (g *GCPProvider) Name() string {
	return "gcp"
}

func (g *GCPProvider) GetPricing(ctx context.Context) (*models.PricingModel, error) {
	// e2-medium average, pd-balanced, one forwarding rule
	return &models.PricingModel{
		Provider:             "gcp",
		Region:               g.region,
		Currency:             "USD",
		CPUPerCoreMonth:      31.0,
		MemoryPerGiBMonth:    4.2,
		StoragePerGiBMonth:   0.10,
		LoadBalancerPerMonth: 18.26,
	}, nil
}
