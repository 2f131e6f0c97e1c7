// Package metrics exposes report totals as Prometheus metrics in the
// node-exporter textfile format.
package metrics

import (
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "waste_audit"

type Exporter struct {
	registry *prometheus.Registry

	monthlyWaste   *prometheus.GaugeVec
	findingPods    *prometheus.GaugeVec
	findingSavings *prometheus.GaugeVec
	pods           *prometheus.GaugeVec
	nodes          *prometheus.GaugeVec
	estimated      *prometheus.GaugeVec
	lastRun        *prometheus.GaugeVec
}

// NewExporter registers all gauges on a private registry so that only
// report metrics end up in the textfile.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		monthlyWaste: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monthly_waste",
			Help:      "Estimated monthly waste per category in the pricing currency.",
		}, []string{"cluster", "category"}),
		findingPods: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "finding_pods_affected",
			Help:      "Pods or resources affected per finding type.",
		}, []string{"cluster", "type", "severity"}),
		findingSavings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "finding_monthly_savings",
			Help:      "Monthly savings per finding type.",
		}, []string{"cluster", "type", "severity"}),
		pods: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pods",
			Help:      "Pods in the audited snapshot.",
		}, []string{"cluster"}),
		nodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Nodes in the audited snapshot.",
		}, []string{"cluster"}),
		estimated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "estimated",
			Help:      "1 if the monthly waste is a heuristic estimate.",
		}, []string{"cluster"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the audited report.",
		}, []string{"cluster"}),
	}

	e.registry.MustRegister(e.monthlyWaste, e.findingPods, e.findingSavings, e.pods, e.nodes, e.estimated, e.lastRun)

	return e
}

// Export sets all gauges from report.
func (e *Exporter) Export(report *models.Report) {
	cluster := report.ClusterID

	e.monthlyWaste.WithLabelValues(cluster, "memory").Set(float64(report.Breakdown.Memory))
	e.monthlyWaste.WithLabelValues(cluster, "cpu").Set(float64(report.Breakdown.CPU))
	e.monthlyWaste.WithLabelValues(cluster, "storage").Set(float64(report.Breakdown.Storage))
	e.monthlyWaste.WithLabelValues(cluster, "load_balancer").Set(float64(report.Breakdown.LoadBalancer))
	e.monthlyWaste.WithLabelValues(cluster, "total").Set(float64(report.Costs.MonthlyWaste))

	for _, f := range report.Findings {
		e.findingPods.WithLabelValues(cluster, f.Type.String(), f.Severity.String()).Set(float64(f.PodsAffected))
		e.findingSavings.WithLabelValues(cluster, f.Type.String(), f.Severity.String()).Set(float64(f.MonthlySavings))
	}

	e.pods.WithLabelValues(cluster).Set(float64(report.TotalPods))
	e.nodes.WithLabelValues(cluster).Set(float64(report.TotalNodes))

	estimated := 0.0
	if report.Costs.Estimated {
		estimated = 1
	}
	e.estimated.WithLabelValues(cluster).Set(estimated)
	e.lastRun.WithLabelValues(cluster).Set(float64(report.Timestamp.Unix()))
}

// WriteTextfile atomically writes all metrics to path.
func (e *Exporter) WriteTextfile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, e.registry), "can't write metrics to %s", path)
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
