package pricing

import (
	"context"

	"github.com/opscart/k8s-waste-audit/pkg/models"
)

// AzureProvider implements Azure AKS pricing
type AzureProvider struct {
	region string
}

func NewAzureProvider(region string) *AzureProvider {
	return &AzureProvider{region: region}
}

func (a *AzureProvider) Name() string {
	return "azure"
}

func (a *AzureProvider) GetPricing(ctx context.Context) (*models.PricingModel, error) {
	// Averaged from common VM types.
	// D2s_v3: 2 vCPU, 8 GiB = ~$0.096/hour
	// CPU: ~$0.048/core/hour = ~$35/core/month
	// Memory: ~$0.006/GiB/hour = ~$4.3/GiB/month
	return &models.PricingModel{
		Provider:             "azure",
		Region:               a.region,
		Currency:             "USD",
		CPUPerCoreMonth:      35.0,
		MemoryPerGiBMonth:    4.3,
		StoragePerGiBMonth:   0.12,
		LoadBalancerPerMonth: 18.25,
	}, nil
}
