package models

import "math"

// PricingModel holds the fixed monthly rates applied to waste quantities.
// It is injected once per run and never mutated.
type PricingModel struct {
	Provider string `json:"provider"`
	Region   string `json:"region,omitempty"`
	Currency string `json:"currency"`

	MemoryPerGiBMonth    float64 `json:"memoryPerGiBMonth"`
	CPUPerCoreMonth      float64 `json:"cpuPerCoreMonth"`
	StoragePerGiBMonth   float64 `json:"storagePerGiBMonth"`
	LoadBalancerPerMonth float64 `json:"loadBalancerPerMonth"`
}

// Breakdown is the monthly waste per category.
type Breakdown struct {
	Memory       int64 `json:"memory"`
	CPU          int64 `json:"cpu"`
	Storage      int64 `json:"storage"`
	LoadBalancer int64 `json:"loadBalancer"`
}

// Total sums all categories.
func (b Breakdown) Total() int64 {
	return AddSaturating(AddSaturating(b.Memory, b.CPU), AddSaturating(b.Storage, b.LoadBalancer))
}

// Costs is the priced headline of a report.
type Costs struct {
	MonthlyWaste         int64 `json:"monthlyWaste"`
	AnnualSavings        int64 `json:"annualSavings"`
	CurrentMonthlyCost   int64 `json:"currentMonthlyCost"`
	OptimizedMonthlyCost int64 `json:"optimizedMonthlyCost"`

	// Estimated is true when MonthlyWaste is the node/pod heuristic rather
	// than the sum of detected findings.
	Estimated bool   `json:"estimated"`
	Basis     string `json:"basis"`
}

const (
	BasisMeasured  = "measured"
	BasisHeuristic = "heuristic"
)

// AddSaturating adds two non-negative amounts, clamping at math.MaxInt64
// instead of wrapping.
func AddSaturating(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// Clamp converts a non-negative float amount to int64, truncating. Values
// beyond int64 saturate and NaN or negative values are 0.
func Clamp(f float64) int64 {
	switch {
	case !(f > 0):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	default:
		return int64(f)
	}
}
