package pricing

import (
	"context"

	"github.com/opscart/k8s-waste-audit/pkg/models"
)

// Provider supplies the pricing model for one cloud.
type Provider interface {
	GetPricing(ctx context.Context) (*models.PricingModel, error)
	Name() string
}

type Config struct {
	Provider string
	Region   string

	// Overrides replaces individual rates of the provider model when > 0.
	Overrides models.PricingModel
}
