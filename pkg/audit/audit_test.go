package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/opscart/k8s-waste-audit/pkg/evaluator"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/pricing"
	"github.com/opscart/k8s-waste-audit/pkg/reporter"
	"github.com/opscart/k8s-waste-audit/pkg/snapshot"
)

func pod(name, cpuReq, memReq, cpuLim, memLim string) snapshot.Pod {
	return snapshot.Pod{
		Namespace: "default",
		Name:      name,
		Containers: []snapshot.Container{{
			Name:     "main",
			Requests: snapshot.Resources{CPU: cpuReq, Memory: memReq},
			Limits:   snapshot.Resources{CPU: cpuLim, Memory: memLim},
		}},
	}
}

func usage(name, cpu, mem string) snapshot.UsageRow {
	return snapshot.UsageRow{Namespace: "default", Name: name, CPU: cpu, Memory: mem}
}

func findingOf(report *models.Report, t models.FindingType) *models.FindingAggregate {
	for i := range report.Findings {
		if report.Findings[i].Type == t {
			return &report.Findings[i]
		}
	}
	return nil
}

var _ = Describe("Auditor", func() {
	var (
		auditor *Auditor
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		auditor = New(logr.Discard(), Options{
			Pricing: models.PricingModel{
				Provider:             "default",
				Currency:             "USD",
				MemoryPerGiBMonth:    pricing.DefaultMemoryPerGiBMonth,
				CPUPerCoreMonth:      pricing.DefaultCPUPerCoreMonth,
				StoragePerGiBMonth:   pricing.DefaultStoragePerGiBMonth,
				LoadBalancerPerMonth: pricing.DefaultLoadBalancerPerMonth,
			},
			Thresholds: evaluator.DefaultThresholds(),
			Heuristic:  reporter.DefaultHeuristic(),
			Now:        func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
		})
	})

	Context("with live usage", func() {
		var snap *snapshot.Snapshot

		BeforeEach(func() {
			snap = &snapshot.Snapshot{
				ClusterName: "prod",
				Pods: []snapshot.Pod{
					pod("p1", "", "8Gi", "", ""),
					pod("p2", "", "", "", ""),
					pod("p3", "", "256Mi", "", ""),
				},
				Nodes: []snapshot.Node{{Name: "n1"}},
				Usage: []snapshot.UsageRow{
					usage("p1", "10m", "1Gi"),
					usage("p3", "10m", "200Mi"),
				},
			}
		})

		It("flags over-provisioned and request-less pods", func() {
			report, err := auditor.Run(ctx, snap)
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Details.Mode).To(Equal("live"))
			Expect(report.Details.PodsOverProvisioned).To(Equal(1))
			Expect(report.Details.PodsNoRequests).To(Equal(1))
			Expect(report.Details.PodsUnsampled).To(BeZero())

			mem := findingOf(report, models.MemoryOverprovisioned)
			Expect(mem).NotTo(BeNil())
			Expect(mem.PodsAffected).To(Equal(1))
			Expect(mem.Severity).To(Equal(models.SeverityHigh))
			// 6656 MiB = 6.5 GiB at 7.20
			Expect(mem.MonthlySavings).To(Equal(int64(47)))
			Expect(mem.Examples).To(HaveLen(1))
			Expect(mem.Examples[0].Name).To(Equal("p1"))
			Expect(mem.Examples[0].Container).To(Equal("main"))

			noReq := findingOf(report, models.NoRequests)
			Expect(noReq).NotTo(BeNil())
			Expect(noReq.PodsAffected).To(Equal(1))
			Expect(noReq.MonthlySavings).To(BeZero())
			Expect(noReq.Examples).To(BeEmpty())

			Expect(findingOf(report, models.CPUOverprovisioned)).To(BeNil())

			Expect(report.TopOffender).NotTo(BeNil())
			Expect(report.TopOffender.Pod.Name).To(Equal("p1"))
			Expect(report.TopOffender.MonthlyWaste).To(Equal(int64(47)))

			Expect(report.Breakdown.Memory).To(Equal(int64(47)))
			Expect(report.Costs.MonthlyWaste).To(Equal(int64(47)))
			Expect(report.Costs.Estimated).To(BeFalse())
			Expect(report.TotalPods).To(Equal(3))
			Expect(report.TotalNodes).To(Equal(1))
		})

		It("produces identical reports for identical snapshots", func() {
			first, err := auditor.Run(ctx, snap)
			Expect(err).NotTo(HaveOccurred())
			second, err := auditor.Run(ctx, snap)
			Expect(err).NotTo(HaveOccurred())

			a, err := json.Marshal(first)
			Expect(err).NotTo(HaveOccurred())
			b, err := json.Marshal(second)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(a)).To(Equal(string(b)))
		})

		It("counts pods without samples as unsampled", func() {
			snap.Pods = append(snap.Pods, pod("p4", "", "16Gi", "", ""))

			report, err := auditor.Run(ctx, snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Details.PodsUnsampled).To(Equal(1))
			Expect(findingOf(report, models.MemoryOverprovisioned).PodsAffected).To(Equal(1))
		})
	})

	Context("without live usage", func() {
		It("falls back to limits against requests", func() {
			report, err := auditor.Run(ctx, &snapshot.Snapshot{
				Pods: []snapshot.Pod{
					pod("wide", "100m", "512Mi", "500m", "2Gi"),
					pod("tight", "100m", "512Mi", "200m", "1Gi"),
				},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Details.Mode).To(Equal("fallback"))
			Expect(report.Details.PodsOverProvisioned).To(Equal(1))
			Expect(report.Breakdown.Memory).To(Equal(int64(9)))
			Expect(report.Breakdown.CPU).To(Equal(int64(8)))
			Expect(report.Findings[0].Type).To(Equal(models.MemoryOverprovisioned))
			Expect(report.TopOffender.Pod.Name).To(Equal("wide"))
		})
	})

	Context("with infrastructure waste", func() {
		It("reports orphaned load balancers and unbound storage", func() {
			report, err := auditor.Run(ctx, &snapshot.Snapshot{
				Pods: []snapshot.Pod{pod("ok", "100m", "128Mi", "", "")},
				Services: []snapshot.Service{
					{Namespace: "default", Name: "lb", Type: "LoadBalancer"},
				},
				PersistentVolumes: []snapshot.PersistentVolume{
					{Name: "pv-1", Phase: "Released", Capacity: "100Gi"},
					{Name: "pv-2", Phase: "Bound", Capacity: "100Gi"},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Details.OrphanedLoadBalancers).To(Equal(1))
			Expect(report.Details.UnboundStorageGB).To(BeNumerically("==", 100))
			Expect(report.Breakdown.LoadBalancer).To(Equal(int64(20)))
			Expect(report.Breakdown.Storage).To(Equal(int64(10)))
			Expect(report.Costs.MonthlyWaste).To(Equal(int64(30)))
			Expect(report.Findings[0].Type).To(Equal(models.OrphanedLoadBalancer))
			Expect(report.TopOffender).To(BeNil())
		})
	})

	Context("with out of range quantities", func() {
		It("treats them as absent instead of wrapping", func() {
			report, err := auditor.Run(ctx, &snapshot.Snapshot{
				Pods:  []snapshot.Pod{pod("absurd", "1e30", "", "1e31", "")},
				Nodes: []snapshot.Node{{Name: "n1"}},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Breakdown.CPU).To(BeZero())
			Expect(report.Details.PodsNoRequests).To(BeZero())
			Expect(report.Findings).To(BeEmpty())
			Expect(report.Costs.Estimated).To(BeTrue())
			// 20% of (150 + 10)
			Expect(report.Costs.MonthlyWaste).To(Equal(int64(32)))
		})
	})

	Context("when nothing is wasted", func() {
		It("substitutes the heuristic estimate", func() {
			report, err := auditor.Run(ctx, &snapshot.Snapshot{
				Pods:  []snapshot.Pod{pod("ok", "100m", "128Mi", "200m", "256Mi")},
				Nodes: []snapshot.Node{{Name: "n1"}, {Name: "n2"}},
			})
			Expect(err).NotTo(HaveOccurred())

			// 20% of (2 × 150 + 1 × 10)
			Expect(report.Costs.MonthlyWaste).To(Equal(int64(62)))
			Expect(report.Costs.Estimated).To(BeTrue())
			Expect(report.Costs.Basis).To(Equal(models.BasisHeuristic))
			Expect(report.Findings).To(BeEmpty())
		})
	})

	Context("with an empty snapshot", func() {
		It("refuses to build a report", func() {
			_, err := auditor.Run(ctx, &snapshot.Snapshot{})
			Expect(errors.Is(err, snapshot.ErrEmptySnapshot)).To(BeTrue())
		})
	})

	Context("with a cancelled context", func() {
		It("stops before evaluating", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := auditor.Run(cctx, &snapshot.Snapshot{Pods: []snapshot.Pod{pod("a", "", "", "", "")}})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})
})
