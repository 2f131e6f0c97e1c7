package pricing

import (
	"context"

	"github.com/opscart/k8s-waste-audit/pkg/models"
)

// AWSProvider implements AWS EKS pricing
type AWSProvider struct {
	region string
}

func NewAWSProvider(region string) *AWSProvider {
	return &AWSProvider{region: region}
}

func (a *AWSProvider) Name() string {
	return "aws"
}

func (a *AWSProvider) GetPricing(ctx context.Context) (*models.PricingModel, error) {
	// Typical on-demand pricing (m5/t3 average), gp3 volumes and ALB hours.
	// TODO: Integrate with AWS Pricing API in future
	return &models.PricingModel{
		Provider:             "aws",
		Region:               a.region,
		Currency:             "USD",
		CPUPerCoreMonth:      33.0,
		MemoryPerGiBMonth:    4.5,
		StoragePerGiBMonth:   0.08,
		LoadBalancerPerMonth: 16.43,
	}, nil
}
