// Package reporter assembles the priced waste report and renders it as
// text or CSV.
package reporter

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/opscart/k8s-waste-audit/pkg/models"
)

// ReportFormat represents the output format
type ReportFormat string

const (
	FormatText ReportFormat = "text"
	FormatJSON ReportFormat = "json"
	FormatCSV  ReportFormat = "csv"
)

// findingNamespace seeds the name-based finding IDs.
var findingNamespace = uuid.MustParse("6f0c3c1e-8a43-4f43-9d3a-0b6f3f1f5a21")

// Heuristic estimates waste for clusters where nothing was detected.
type Heuristic struct {
	NodeMonthlyCost float64 `mapstructure:"node-monthly-cost"`
	PodMonthlyCost  float64 `mapstructure:"pod-monthly-cost"`
	// WasteFraction is the share of the estimated spend assumed wasted.
	WasteFraction float64 `mapstructure:"waste-fraction"`
	// CostMultiplier relates monthly waste to the current monthly spend.
	CostMultiplier float64 `mapstructure:"cost-multiplier"`
}

func DefaultHeuristic() Heuristic {
	return Heuristic{
		NodeMonthlyCost: 150,
		PodMonthlyCost:  10,
		WasteFraction:   0.2,
		CostMultiplier:  3,
	}
}

// Estimate returns the heuristic monthly waste of a cluster.
func (h Heuristic) Estimate(nodes, pods int) int64 {
	spend := float64(nodes)*h.NodeMonthlyCost + float64(pods)*h.PodMonthlyCost
	return models.Clamp(math.Round(spend * h.WasteFraction))
}

// Input is everything a run gathered for the report.
type Input struct {
	ClusterName string
	Summary     models.ClusterSummary
	Findings    []models.FindingAggregate
	TopOffender *models.TopOffender
	Details     models.Details
	Pricing     models.PricingModel
}

// Builder generates reports. The clock is injected so that two builds of
// the same input are identical.
type Builder struct {
	heuristic Heuristic
	now       func() time.Time
}

// New creates a new report builder. A nil clock means time.Now.
func New(heuristic Heuristic, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{heuristic: heuristic, now: now}
}

// Build assembles the final report. When no waste was detected the
// heuristic estimate replaces the monthly waste and the costs are marked as
// estimated.
func (b *Builder) Build(in Input) *models.Report {
	clusterID := ClusterID(in.ClusterName)

	report := &models.Report{
		Timestamp:   b.now().UTC(),
		ClusterID:   clusterID,
		TotalPods:   in.Summary.Pods,
		TotalNodes:  in.Summary.Nodes,
		Findings:    make([]models.FindingAggregate, 0, len(in.Findings)),
		Breakdown:   in.Summary.Breakdown,
		Details:     in.Details,
		TopOffender: in.TopOffender,
		Pricing:     in.Pricing,
	}

	for _, f := range in.Findings {
		f.ID = FindingID(clusterID, f.Type)
		report.Findings = append(report.Findings, f)
	}

	report.Costs = b.costs(in.Summary)

	return report
}

func (b *Builder) costs(summary models.ClusterSummary) models.Costs {
	costs := models.Costs{
		MonthlyWaste: summary.Breakdown.Total(),
		Basis:        models.BasisMeasured,
	}

	if costs.MonthlyWaste == 0 {
		costs.MonthlyWaste = b.heuristic.Estimate(summary.Nodes, summary.Pods)
		costs.Estimated = true
		costs.Basis = models.BasisHeuristic
	}

	costs.AnnualSavings = math.MaxInt64
	if costs.MonthlyWaste <= math.MaxInt64/12 {
		costs.AnnualSavings = costs.MonthlyWaste * 12
	}
	costs.CurrentMonthlyCost = models.Clamp(math.Round(float64(costs.MonthlyWaste) * b.heuristic.CostMultiplier))
	costs.OptimizedMonthlyCost = costs.CurrentMonthlyCost - costs.MonthlyWaste
	if costs.OptimizedMonthlyCost < 0 {
		costs.OptimizedMonthlyCost = 0
	}

	return costs
}

// ClusterID is an opaque, stable identifier derived from the cluster name.
func ClusterID(clusterName string) string {
	if clusterName == "" {
		clusterName = "default"
	}
	sum := sha256.Sum256([]byte(clusterName))
	return hex.EncodeToString(sum[:8])
}

// FindingID is stable for a cluster and finding type across runs.
func FindingID(clusterID string, t models.FindingType) string {
	return uuid.NewSHA1(findingNamespace, []byte(clusterID+"/"+t.String())).String()
}
