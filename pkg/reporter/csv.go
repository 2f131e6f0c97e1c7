package reporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/pkg/errors"
)

// GenerateCSV creates a CSV report with one row per retained example and a
// summary block.
func GenerateCSV(report *models.Report, writer io.Writer) error {
	w := csv.NewWriter(writer)

	// Write header
	header := []string{
		"Finding",
		"Severity",
		"Pods Affected",
		"Finding Savings ($/mo)",
		"Namespace",
		"Name",
		"Container",
		"Request",
		"Limit",
		"Usage",
		"Waste ($/mo)",
	}
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	// Write findings
	for _, f := range report.Findings {
		base := []string{
			f.Type.String(),
			f.Severity.String(),
			fmt.Sprintf("%d", f.PodsAffected),
			fmt.Sprintf("%d", f.MonthlySavings),
		}
		if len(f.Examples) == 0 {
			if err := w.Write(append(base, "", "", "", "", "", "", "")); err != nil {
				return errors.Wrap(err, "failed to write CSV row")
			}
			continue
		}
		for _, ex := range f.Examples {
			row := append(append([]string{}, base...),
				ex.Namespace,
				ex.Name,
				ex.Container,
				ex.Request,
				ex.Limit,
				ex.Usage,
				fmt.Sprintf("%d", ex.WastePerMonth),
			)
			if err := w.Write(row); err != nil {
				return errors.Wrap(err, "failed to write CSV row")
			}
		}
	}

	// Write summary rows
	summary := [][]string{
		{},
		{"SUMMARY"},
		{"Cluster", report.ClusterID},
		{"Total Pods", fmt.Sprintf("%d", report.TotalPods)},
		{"Total Nodes", fmt.Sprintf("%d", report.TotalNodes)},
		{"Monthly Waste", fmt.Sprintf("%d", report.Costs.MonthlyWaste)},
		{"Annual Savings", fmt.Sprintf("%d", report.Costs.AnnualSavings)},
		{"Basis", report.Costs.Basis},
	}
	for _, row := range summary {
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "failed to write CSV summary")
		}
	}

	w.Flush()
	return errors.Wrap(w.Error(), "failed to flush CSV")
}

// WriteFormat renders report in the given format.
func WriteFormat(report *models.Report, format ReportFormat, writer io.Writer) error {
	switch format {
	case FormatText:
		return GenerateSummary(report, writer)
	case FormatJSON:
		return GenerateJSON(report, writer)
	case FormatCSV:
		return GenerateCSV(report, writer)
	default:
		return errors.Errorf("unsupported report format: %s", format)
	}
}
