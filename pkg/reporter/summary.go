package reporter

import (
	"io"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/pkg/errors"
)

// maxSummaryFindings bounds the "top issues" list of the text summary.
const maxSummaryFindings = 3

const summaryTemplate = `=== Kubernetes Waste Audit ===

Cluster:   {{.ClusterID}}
Generated: {{.Timestamp.Format "2006-01-02 15:04:05 MST"}}
Pods:      {{.TotalPods}}
Nodes:     {{.TotalNodes}}
Mode:      {{.Details.Mode}}

Monthly waste:     {{money .Costs.MonthlyWaste}}{{if .Costs.Estimated}} (estimated){{end}}
Annual savings:    {{money .Costs.AnnualSavings}}
Current spend:     {{money .Costs.CurrentMonthlyCost}}/month
Optimized spend:   {{money .Costs.OptimizedMonthlyCost}}/month

Breakdown:
   Memory:         {{money .Breakdown.Memory}}
   CPU:            {{money .Breakdown.CPU}}
   Storage:        {{money .Breakdown.Storage}}
   Load balancers: {{money .Breakdown.LoadBalancer}}
{{with top .Findings}}
=== Top Issues ===
{{range $i, $f := .}}
{{inc $i}}. {{$f.Type}} [{{$f.Severity}}]
   {{$f.Description}}
   Pods affected: {{$f.PodsAffected}}
   Savings: {{money $f.MonthlySavings}}/month
{{- range $f.Examples}}
   - {{example .}}: {{money .WastePerMonth}}/month
{{- end}}
   Fix: {{$f.Recommendation}}
{{end}}{{end}}
{{- with .TopOffender}}
Top offender: {{.Pod.PodRef}} ({{money .MonthlyWaste}}/month)
{{end}}
{{- if .Details.PodsUnsampled}}
[WARN] {{.Details.PodsUnsampled}} pod(s) had no usage samples and were not evaluated
{{end}}
{{- if .Costs.Estimated}}
[INFO] No waste was detected from declared resources. The figures above are a
[INFO] heuristic estimate based on node and pod counts, not a measurement.
{{end}}`

var summaryTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"money": func(v int64) string {
		return "$" + humanize.Comma(v)
	},
	"inc": func(i int) int { return i + 1 },
	"top": func(f []models.FindingAggregate) []models.FindingAggregate {
		if len(f) > maxSummaryFindings {
			return f[:maxSummaryFindings]
		}
		return f
	},
	"example": func(ex models.Example) string {
		var b strings.Builder
		if ex.Namespace != "" {
			b.WriteString(ex.Namespace + "/")
		}
		b.WriteString(ex.Name)
		if ex.Container != "" {
			b.WriteString(" container=" + ex.Container)
		}
		if ex.Request != "" {
			b.WriteString(" request=" + ex.Request)
		}
		if ex.Limit != "" {
			b.WriteString(" limit=" + ex.Limit)
		}
		if ex.Usage != "" {
			b.WriteString(" usage=" + ex.Usage)
		}
		return b.String()
	},
}).Parse(summaryTemplate))

// GenerateSummary writes the human readable summary of a report.
func GenerateSummary(report *models.Report, writer io.Writer) error {
	if err := summaryTmpl.Execute(writer, report); err != nil {
		return errors.Wrap(err, "failed to execute summary template")
	}
	return nil
}
