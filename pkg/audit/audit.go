// Package audit runs the waste estimation pipeline over one snapshot.
package audit

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/opscart/k8s-waste-audit/pkg/aggregator"
	"github.com/opscart/k8s-waste-audit/pkg/evaluator"
	"github.com/opscart/k8s-waste-audit/pkg/findings"
	"github.com/opscart/k8s-waste-audit/pkg/infra"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/reporter"
	"github.com/opscart/k8s-waste-audit/pkg/snapshot"
	"github.com/pkg/errors"
)

// Options are the fixed parameters of a run.
type Options struct {
	Pricing    models.PricingModel
	Thresholds evaluator.Thresholds
	Heuristic  reporter.Heuristic

	// Now stamps the report. Defaults to time.Now.
	Now func() time.Time
}

// Auditor turns snapshots into reports. Each Run owns its own collector and
// tracker, so an Auditor may be reused.
type Auditor struct {
	log  logr.Logger
	opts Options
}

func New(log logr.Logger, opts Options) *Auditor {
	return &Auditor{log: log, opts: opts}
}

// run holds the per-run accumulation state.
type run struct {
	collector *findings.Collector
	tracker   findings.TopOffenderTracker
	details   models.Details
}

// Run evaluates every pod of s, scans its infrastructure and builds the
// report. The snapshot is only read.
func (a *Auditor) Run(ctx context.Context, s *snapshot.Snapshot) (*models.Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	mode := evaluator.SelectMode(s.HasUsage())
	if mode == evaluator.ModeFallback {
		a.log.Info("No usage samples available, comparing limits against requests")
	}

	r := &run{
		collector: findings.NewCollector(),
		details:   models.Details{Mode: mode.String()},
	}

	eval := evaluator.New(mode, a.opts.Thresholds, a.opts.Pricing)
	usage := aggregator.NewUsageIndex(s.Usage)

	for _, pod := range s.Pods {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "audit aborted")
		}

		rec := aggregator.Aggregate(pod)
		if mode == evaluator.ModeLiveUsage {
			if row, ok := usage.Lookup(rec.PodRef); ok {
				aggregator.Attach(&rec, row)
			}
		}

		r.evaluate(a.log, eval, rec)
	}

	inf := infra.NewScanner(a.log, a.opts.Pricing).Scan(s.PersistentVolumes, s.Services, r.collector)
	r.details.OrphanedLoadBalancers = inf.OrphanedLoadBalancers
	r.details.UnboundStorageGB = inf.UnboundStorageGiB

	summary := models.ClusterSummary{
		Pods:                  len(s.Pods),
		Nodes:                 len(s.Nodes),
		UnboundStorageGiB:     inf.UnboundStorageGiB,
		OrphanedLoadBalancers: inf.OrphanedLoadBalancers,
		Breakdown: models.Breakdown{
			Memory:       r.collector.Savings(models.MemoryOverprovisioned),
			CPU:          r.collector.Savings(models.CPUOverprovisioned),
			Storage:      inf.StorageCost,
			LoadBalancer: inf.LoadBalancerCost,
		},
	}

	if r.details.PodsUnsampled > 0 {
		a.log.Info("Pods without usage samples were not evaluated", "pods", r.details.PodsUnsampled)
	}

	report := reporter.New(a.opts.Heuristic, a.opts.Now).Build(reporter.Input{
		ClusterName: s.ClusterName,
		Summary:     summary,
		Findings:    r.collector.Aggregates(),
		TopOffender: r.tracker.Top(),
		Details:     r.details,
		Pricing:     a.opts.Pricing,
	})

	a.log.Info("Audit finished",
		"pods", report.TotalPods,
		"findings", len(report.Findings),
		"monthlyWaste", report.Costs.MonthlyWaste,
		"basis", report.Costs.Basis)

	return report, nil
}

func (r *run) evaluate(log logr.Logger, eval *evaluator.Evaluator, rec models.PodResourceRecord) {
	res := eval.Evaluate(rec)

	switch {
	case res.NoRequests:
		r.details.PodsNoRequests++
	case res.Unsampled:
		r.details.PodsUnsampled++
	case len(res.Events) > 0:
		r.details.PodsOverProvisioned++
	}

	for _, ev := range res.Events {
		log.V(1).Info("Waste detected",
			"pod", ev.Pod.String(),
			"type", ev.Type.String(),
			"monthlySavings", ev.MonthlySavings,
			"requested", ev.Requested,
			"actual", ev.Actual)
		r.collector.Record(ev)
	}

	r.tracker.Consider(rec, res.TotalWaste())
}
