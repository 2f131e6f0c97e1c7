package infra

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/opscart/k8s-waste-audit/pkg/findings"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPricing = models.PricingModel{
	MemoryPerGiBMonth:    7.20,
	CPUPerCoreMonth:      21.60,
	StoragePerGiBMonth:   0.10,
	LoadBalancerPerMonth: 20.00,
}

func TestOrphanedLoadBalancers(t *testing.T) {
	c := findings.NewCollector()
	services := []snapshot.Service{
		{Namespace: "shop", Name: "public", Type: "LoadBalancer", Selector: map[string]string{"app": "web"}},
		{Namespace: "shop", Name: "legacy", Type: "LoadBalancer"},
		{Namespace: "shop", Name: "internal", Type: "ClusterIP"},
		{Namespace: "ops", Name: "old", Type: "LoadBalancer", Selector: map[string]string{}},
	}

	res := NewScanner(logr.Discard(), testPricing).Scan(nil, services, c)

	assert.Equal(t, 2, res.OrphanedLoadBalancers)
	assert.Equal(t, int64(40), res.LoadBalancerCost)

	agg, ok := c.Get(models.OrphanedLoadBalancer)
	require.True(t, ok)
	assert.Equal(t, 2, agg.PodsAffected)
	assert.Equal(t, int64(40), agg.MonthlySavings)
	assert.Equal(t, "legacy", agg.Examples[0].Name)
	assert.Equal(t, models.SeverityMedium, agg.Severity)
}

func TestUnboundStorage(t *testing.T) {
	c := findings.NewCollector()
	pvs := []snapshot.PersistentVolume{
		{Name: "data-0", Phase: "Bound", Capacity: "100Gi"},
		{Name: "data-1", Phase: "Released", Capacity: "50Gi"},
		{Name: "data-2", Phase: "Available", Capacity: "512Mi"},
		{Name: "data-3", Phase: "Failed", Capacity: "10G"},
	}

	res := NewScanner(logr.Discard(), testPricing).Scan(pvs, nil, c)

	assert.Equal(t, 3, res.UnboundVolumes)
	assert.InDelta(t, 50.5, res.UnboundStorageGiB, 1e-9)
	// 50.5 GiB at 0.10
	assert.Equal(t, int64(5), res.StorageCost)

	agg, ok := c.Get(models.UnboundStorage)
	require.True(t, ok)
	assert.Equal(t, 3, agg.PodsAffected)
	assert.Equal(t, res.StorageCost, agg.MonthlySavings)
}

func TestSmallUnboundVolumeFloorsToOne(t *testing.T) {
	c := findings.NewCollector()
	res := NewScanner(logr.Discard(), testPricing).Scan([]snapshot.PersistentVolume{
		{Name: "tiny", Phase: "Available", Capacity: "1Gi"},
	}, nil, c)

	assert.Equal(t, int64(1), res.StorageCost)
}

func TestNoInfraWaste(t *testing.T) {
	c := findings.NewCollector()
	res := NewScanner(logr.Discard(), testPricing).Scan(nil, nil, c)

	assert.Equal(t, Result{}, res)
	assert.Zero(t, c.Len())
}
