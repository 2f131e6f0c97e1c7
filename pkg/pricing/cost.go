package pricing

import (
	"math"

	"github.com/opscart/k8s-waste-audit/pkg/models"
)

// MonthlyCost prices a waste quantity (GiB, cores or units) at a monthly
// rate. The quantity is priced annually, divided by twelve and rounded to the
// nearest whole currency unit. Positive waste never rounds down to zero: it
// is billed at least 1, and amounts beyond int64 saturate.
func MonthlyCost(quantity, monthlyRate float64) int64 {
	annual := quantity * monthlyRate * 12
	if annual <= 0 || math.IsNaN(annual) {
		return 0
	}

	monthly := models.Clamp(math.Round(annual / 12))
	if monthly < 1 {
		return 1
	}
	return monthly
}
