package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func measuredInput() Input {
	return Input{
		ClusterName: "prod",
		Summary: models.ClusterSummary{
			Pods:      3,
			Nodes:     2,
			Breakdown: models.Breakdown{Memory: 9, CPU: 18},
		},
		Findings: []models.FindingAggregate{
			{
				Type:           models.CPUOverprovisioned,
				Severity:       models.SeverityMedium,
				PodsAffected:   1,
				MonthlySavings: 18,
				Description:    models.CPUOverprovisioned.Description(),
				Recommendation: models.CPUOverprovisioned.Recommendation(),
				Examples:       []models.Example{{Namespace: "shop", Name: "api", Container: "app", WastePerMonth: 18, Request: "1000m", Usage: "100m"}},
			},
			{
				Type:           models.NoRequests,
				Severity:       models.SeverityHigh,
				PodsAffected:   1,
				Description:    models.NoRequests.Description(),
				Recommendation: models.NoRequests.Recommendation(),
				Examples:       []models.Example{},
			},
		},
		TopOffender: &models.TopOffender{
			Pod:          models.PodResourceRecord{PodRef: models.PodRef{Namespace: "shop", Name: "api"}},
			MonthlyWaste: 27,
		},
		Details: models.Details{PodsOverProvisioned: 1, PodsNoRequests: 1, Mode: "live"},
	}
}

func TestBuildMeasured(t *testing.T) {
	report := New(DefaultHeuristic(), fixedNow).Build(measuredInput())

	assert.Equal(t, fixedNow(), report.Timestamp)
	assert.Equal(t, ClusterID("prod"), report.ClusterID)
	assert.Len(t, report.ClusterID, 16)
	assert.Equal(t, 3, report.TotalPods)
	assert.Equal(t, 2, report.TotalNodes)

	assert.Equal(t, int64(27), report.Costs.MonthlyWaste)
	assert.Equal(t, int64(324), report.Costs.AnnualSavings)
	assert.Equal(t, int64(81), report.Costs.CurrentMonthlyCost)
	assert.Equal(t, int64(54), report.Costs.OptimizedMonthlyCost)
	assert.False(t, report.Costs.Estimated)
	assert.Equal(t, models.BasisMeasured, report.Costs.Basis)

	require.Len(t, report.Findings, 2)
	assert.Equal(t, FindingID(report.ClusterID, models.CPUOverprovisioned), report.Findings[0].ID)
	assert.NotEqual(t, report.Findings[0].ID, report.Findings[1].ID)
}

func TestBuildHeuristic(t *testing.T) {
	in := Input{
		ClusterName: "dev",
		Summary:     models.ClusterSummary{Pods: 20, Nodes: 3},
		Details:     models.Details{Mode: "fallback"},
	}

	report := New(DefaultHeuristic(), fixedNow).Build(in)

	// 20% of (3 × 150 + 20 × 10)
	assert.Equal(t, int64(130), report.Costs.MonthlyWaste)
	assert.True(t, report.Costs.Estimated)
	assert.Equal(t, models.BasisHeuristic, report.Costs.Basis)
	assert.Equal(t, int64(1560), report.Costs.AnnualSavings)
	assert.Equal(t, int64(390), report.Costs.CurrentMonthlyCost)
	assert.Zero(t, report.Breakdown.Total())
	assert.NotNil(t, report.Findings)
}

func TestBuildIsDeterministic(t *testing.T) {
	b := New(DefaultHeuristic(), fixedNow)

	first, err := json.Marshal(b.Build(measuredInput()))
	require.NoError(t, err)
	second, err := json.Marshal(b.Build(measuredInput()))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestClusterIDIsOpaque(t *testing.T) {
	assert.Equal(t, ClusterID("prod"), ClusterID("prod"))
	assert.NotEqual(t, ClusterID("prod"), ClusterID("staging"))
	assert.NotContains(t, ClusterID("prod"), "prod")
	assert.Equal(t, ClusterID("default"), ClusterID(""))
}

func TestGenerateJSONShape(t *testing.T) {
	report := New(DefaultHeuristic(), fixedNow).Build(measuredInput())

	var buf bytes.Buffer
	require.NoError(t, WriteFormat(report, FormatJSON, &buf))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	for _, key := range []string{"timestamp", "clusterId", "totalPods", "totalNodes", "costs", "findings", "breakdown", "details", "topOffender"} {
		assert.Contains(t, doc, key)
	}

	findings := doc["findings"].([]interface{})
	first := findings[0].(map[string]interface{})
	assert.Equal(t, "CPU_OVERPROVISIONED", first["type"])
	assert.Equal(t, "MEDIUM", first["severity"])

	details := doc["details"].(map[string]interface{})
	assert.Equal(t, "live", details["mode"])
}

func TestGenerateSummary(t *testing.T) {
	report := New(DefaultHeuristic(), fixedNow).Build(measuredInput())

	var buf bytes.Buffer
	require.NoError(t, GenerateSummary(report, &buf))

	out := buf.String()
	assert.Contains(t, out, "Monthly waste:     $27")
	assert.Contains(t, out, "1. CPU_OVERPROVISIONED [MEDIUM]")
	assert.Contains(t, out, "shop/api request=1000m usage=100m: $18/month")
	assert.Contains(t, out, "Top offender: shop/api ($27/month)")
	assert.NotContains(t, out, "heuristic estimate")
}

func TestGenerateSummaryHeuristicDisclaimer(t *testing.T) {
	report := New(DefaultHeuristic(), fixedNow).Build(Input{Summary: models.ClusterSummary{Pods: 1000, Nodes: 10}})

	var buf bytes.Buffer
	require.NoError(t, GenerateSummary(report, &buf))

	assert.Contains(t, buf.String(), "$2,300 (estimated)")
	assert.Contains(t, buf.String(), "heuristic estimate")
}

func TestGenerateCSV(t *testing.T) {
	report := New(DefaultHeuristic(), fixedNow).Build(measuredInput())

	var buf bytes.Buffer
	require.NoError(t, WriteFormat(report, FormatCSV, &buf))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, "Finding", rows[0][0])
	assert.Equal(t, []string{"CPU_OVERPROVISIONED", "MEDIUM", "1", "18", "shop", "api", "app", "1000m", "", "100m", "18"}, rows[1])
	assert.Equal(t, "NO_REQUESTS", rows[2][0])
	assert.Equal(t, []string{"Monthly Waste", "27"}, rows[len(rows)-3])
}

func TestWriteFormatUnknown(t *testing.T) {
	assert.Error(t, WriteFormat(&models.Report{}, ReportFormat("html"), &bytes.Buffer{}))
}

func TestSummaryMoney(t *testing.T) {
	in := measuredInput()
	in.Summary.Breakdown.Memory = math.MaxInt64
	report := New(DefaultHeuristic(), fixedNow).Build(in)

	var buf bytes.Buffer
	require.NoError(t, GenerateSummary(report, &buf))

	assert.Contains(t, buf.String(), "Memory:         $9,223,372,036,854,775,807")
	assert.Contains(t, buf.String(), "api container=app request=1000m")
	assert.Equal(t, int64(math.MaxInt64), report.Costs.MonthlyWaste)
	assert.Equal(t, int64(math.MaxInt64), report.Costs.AnnualSavings)
	assert.GreaterOrEqual(t, report.Costs.OptimizedMonthlyCost, int64(0))
}
