package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPods = `{"items": [
  {"metadata": {"name": "p1", "namespace": "shop"},
   "spec": {"containers": [{"name": "app", "resources": {"requests": {"memory": "8Gi"}}}]}}
]}`

func auditDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pods.json"), []byte(testPods), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "usage-pods.txt"),
		[]byte("NAMESPACE NAME CPU(cores) MEMORY(bytes)\nshop p1 10m 1Gi\n"), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("WASTE_AUDIT_NO_TELEMETRY", "1")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScanDirJSON(t *testing.T) {
	out, err := execute(t, "scan", "--dir", auditDir(t), "-o", "json", "--cluster-name", "prod")
	require.NoError(t, err)

	var report models.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, 1, report.TotalPods)
	assert.Equal(t, "live", report.Details.Mode)
	assert.Equal(t, int64(47), report.Breakdown.Memory)
	assert.Equal(t, int64(47), report.Costs.MonthlyWaste)
	assert.False(t, report.Costs.Estimated)
	assert.Len(t, report.ClusterID, 16)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, models.MemoryOverprovisioned, report.Findings[0].Type)
}

func TestScanDirText(t *testing.T) {
	out, err := execute(t, "scan", "--dir", auditDir(t))
	require.NoError(t, err)
	assert.Contains(t, out, "$47")
}

func TestScanMetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waste.prom")

	_, err := execute(t, "scan", "--dir", auditDir(t), "-o", "csv", "--metrics-file", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "waste_audit_monthly_waste")
}

func TestScanRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "scan", "--dir", auditDir(t), "-o", "html")
	assert.Error(t, err)
}

func TestScanEmptyDirFails(t *testing.T) {
	_, err := execute(t, "scan", "--dir", t.TempDir())
	assert.Error(t, err)
}

func TestScanSubmitRequiresToken(t *testing.T) {
	_, err := execute(t, "scan", "--dir", auditDir(t), "--submit", "--submit-url", "http://127.0.0.1:1/reports")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token")
}

func TestPrintHistory(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printHistory(&out, nil))
	assert.Equal(t, "No reports found\n", out.String())

	out.Reset()
	require.NoError(t, printHistory(&out, []models.ReportSummary{{
		ID:           "7c0e",
		ClusterID:    "a1b2",
		GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TotalPods:    3,
		TotalNodes:   1,
		MonthlyWaste: 62,
		Estimated:    true,
		Findings:     0,
	}}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "2026-03-01 12:00:00")
	assert.Contains(t, lines[1], "$62 (est.)")
}
