// Package infra finds cluster-level waste that is not tied to a pod:
// orphaned load balancers and persistent volumes no claim is bound to.
package infra

import (
	"github.com/go-logr/logr"
	"github.com/opscart/k8s-waste-audit/pkg/findings"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/pricing"
	"github.com/opscart/k8s-waste-audit/pkg/quantity"
	"github.com/opscart/k8s-waste-audit/pkg/snapshot"
)

const (
	serviceTypeLoadBalancer = "LoadBalancer"
	volumePhaseBound        = "Bound"
)

// Result holds the infrastructure totals of a run.
type Result struct {
	OrphanedLoadBalancers int
	LoadBalancerCost      int64

	UnboundVolumes    int
	UnboundStorageGiB float64
	StorageCost       int64
}

// Scanner prices infrastructure waste and records it as findings.
type Scanner struct {
	log     logr.Logger
	pricing models.PricingModel
}

// NewScanner creates an infra scanner pricing at the given model.
func NewScanner(log logr.Logger, pricing models.PricingModel) *Scanner {
	return &Scanner{log: log, pricing: pricing}
}

// Scan records one event per orphaned load balancer and per unbound volume
// into c.
func (s *Scanner) Scan(pvs []snapshot.PersistentVolume, services []snapshot.Service, c *findings.Collector) Result {
	var res Result
	s.scanServices(services, c, &res)
	s.scanVolumes(pvs, c, &res)
	return res
}

// scanServices treats a LoadBalancer service without selector as orphaned:
// it cannot route to any pod but is still billed.
func (s *Scanner) scanServices(services []snapshot.Service, c *findings.Collector, res *Result) {
	for _, svc := range services {
		if svc.Type != serviceTypeLoadBalancer || len(svc.Selector) > 0 {
			continue
		}

		cost := pricing.MonthlyCost(1, s.pricing.LoadBalancerPerMonth)
		res.OrphanedLoadBalancers++
		res.LoadBalancerCost += cost

		c.Record(models.WasteEvent{
			Type:           models.OrphanedLoadBalancer,
			Severity:       models.OrphanedLoadBalancer.Severity(),
			Pod:            models.PodRef{Namespace: svc.Namespace, Name: svc.Name},
			MonthlySavings: cost,
			WasteQuantity:  1,
		})
	}
}

// scanVolumes prices the summed capacity of unbound volumes once. Each
// volume's event carries the increase of the running total, so the events
// add up to the priced total exactly.
func (s *Scanner) scanVolumes(pvs []snapshot.PersistentVolume, c *findings.Collector, res *Result) {
	for _, pv := range pvs {
		if pv.Phase == volumePhaseBound {
			continue
		}

		gib, ok := quantity.ToGiB(pv.Capacity)
		if !ok {
			s.log.Info("Ignoring unparseable volume capacity", "volume", pv.Name, "capacity", pv.Capacity)
			gib = 0
		}

		res.UnboundVolumes++
		res.UnboundStorageGiB += gib

		total := pricing.MonthlyCost(res.UnboundStorageGiB, s.pricing.StoragePerGiBMonth)
		cost := total - res.StorageCost
		res.StorageCost = total

		c.Record(models.WasteEvent{
			Type:           models.UnboundStorage,
			Severity:       models.UnboundStorage.Severity(),
			Pod:            models.PodRef{Name: pv.Name},
			MonthlySavings: cost,
			WasteQuantity:  int64(gib),
			Requested:      pv.Capacity,
		})
	}
}
