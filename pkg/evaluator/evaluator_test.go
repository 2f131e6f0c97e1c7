package evaluator

import (
	"math"
	"testing"

	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
)

var testPricing = models.PricingModel{
	Provider:             "default",
	Currency:             "USD",
	MemoryPerGiBMonth:    pricing.DefaultMemoryPerGiBMonth,
	CPUPerCoreMonth:      pricing.DefaultCPUPerCoreMonth,
	StoragePerGiBMonth:   pricing.DefaultStoragePerGiBMonth,
	LoadBalancerPerMonth: pricing.DefaultLoadBalancerPerMonth,
}

func record(name string) models.PodResourceRecord {
	return models.PodResourceRecord{PodRef: models.PodRef{Namespace: "default", Name: name}, Containers: 1}
}

func TestSelectMode(t *testing.T) {
	assert.Equal(t, ModeLiveUsage, SelectMode(true))
	assert.Equal(t, ModeFallback, SelectMode(false))
	assert.Equal(t, "live", ModeLiveUsage.String())
	assert.Equal(t, "fallback", ModeFallback.String())
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.LiveFlagRatio = 1
	assert.Error(t, bad.Validate())

	bad = DefaultThresholds()
	bad.Headroom = 0.5
	assert.Error(t, bad.Validate())
}

func TestLiveMemoryWaste(t *testing.T) {
	rec := record("api")
	rec.MemRequestMiB = ptr.To[int64](2048)
	rec.MemActualMiB = ptr.To[int64](512)

	res := New(ModeLiveUsage, DefaultThresholds(), testPricing).Evaluate(rec)

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, models.MemoryOverprovisioned, ev.Type)
	assert.Equal(t, models.SeverityHigh, ev.Severity)
	assert.Equal(t, int64(1280), ev.WasteQuantity)
	// 1.25 GiB at 7.20
	assert.Equal(t, int64(9), ev.MonthlySavings)
	assert.Equal(t, "2048Mi", ev.Requested)
	assert.Equal(t, "512Mi", ev.Actual)
	assert.Equal(t, int64(9), res.TotalWaste())
}

func TestLiveMemoryAndCPU(t *testing.T) {
	rec := record("both")
	rec.MemRequestMiB = ptr.To[int64](2048)
	rec.MemActualMiB = ptr.To[int64](512)
	rec.CPURequestMC = ptr.To[int64](1000)
	rec.CPUActualMC = ptr.To[int64](100)

	res := New(ModeLiveUsage, DefaultThresholds(), testPricing).Evaluate(rec)

	require.Len(t, res.Events, 2)
	assert.Equal(t, models.CPUOverprovisioned, res.Events[1].Type)
	assert.Equal(t, models.SeverityMedium, res.Events[1].Severity)
	assert.Equal(t, int64(850), res.Events[1].WasteQuantity)
	// 0.85 cores at 21.60
	assert.Equal(t, int64(18), res.Events[1].MonthlySavings)
	assert.Equal(t, int64(27), res.TotalWaste())
}

func TestLiveAtThresholdNotFlagged(t *testing.T) {
	rec := record("tight")
	rec.MemRequestMiB = ptr.To[int64](1024)
	rec.MemActualMiB = ptr.To[int64](512)

	res := New(ModeLiveUsage, DefaultThresholds(), testPricing).Evaluate(rec)
	assert.Empty(t, res.Events)
}

func TestLiveUnsampled(t *testing.T) {
	rec := record("quiet")
	rec.MemRequestMiB = ptr.To[int64](4096)
	rec.MemLimitMiB = ptr.To[int64](16384)

	res := New(ModeLiveUsage, DefaultThresholds(), testPricing).Evaluate(rec)
	assert.True(t, res.Unsampled)
	assert.Empty(t, res.Events)
}

func TestFallbackMemory(t *testing.T) {
	rec := record("limits")
	rec.MemRequestMiB = ptr.To[int64](512)
	rec.MemLimitMiB = ptr.To[int64](2048)

	res := New(ModeFallback, DefaultThresholds(), testPricing).Evaluate(rec)

	require.Len(t, res.Events, 1)
	assert.Equal(t, int64(1280), res.Events[0].WasteQuantity)
	assert.Equal(t, int64(9), res.Events[0].MonthlySavings)
	assert.Equal(t, "2048Mi", res.Events[0].Limit)
	assert.Empty(t, res.Events[0].Actual)
}

func TestFallbackCPU(t *testing.T) {
	e := New(ModeFallback, DefaultThresholds(), testPricing)

	rec := record("cpu")
	rec.CPURequestMC = ptr.To[int64](100)
	rec.CPULimitMC = ptr.To[int64](300)
	assert.Empty(t, e.Evaluate(rec).Events, "3x is not above the cpu ratio")

	rec.CPULimitMC = ptr.To[int64](500)
	res := e.Evaluate(rec)
	require.Len(t, res.Events, 1)
	assert.Equal(t, models.CPUOverprovisioned, res.Events[0].Type)
	assert.Equal(t, int64(350), res.Events[0].WasteQuantity)
	// 0.35 cores at 21.60
	assert.Equal(t, int64(8), res.Events[0].MonthlySavings)
}

func TestFallbackWithoutLimits(t *testing.T) {
	rec := record("nolimit")
	rec.MemRequestMiB = ptr.To[int64](512)
	rec.CPURequestMC = ptr.To[int64](100)

	res := New(ModeFallback, DefaultThresholds(), testPricing).Evaluate(rec)
	assert.Empty(t, res.Events)
	assert.False(t, res.NoRequests)
}

func TestNoRequestsHasZeroSavings(t *testing.T) {
	rec := record("naked")
	rec.MemLimitMiB = ptr.To[int64](8192)

	for _, mode := range []Mode{ModeLiveUsage, ModeFallback} {
		res := New(mode, DefaultThresholds(), testPricing).Evaluate(rec)
		require.Len(t, res.Events, 1, mode.String())
		assert.True(t, res.NoRequests)
		assert.Equal(t, models.NoRequests, res.Events[0].Type)
		assert.Equal(t, models.SeverityHigh, res.Events[0].Severity)
		assert.Zero(t, res.Events[0].MonthlySavings)
		assert.Zero(t, res.TotalWaste())
	}
}

func TestTinyWasteFloorsToOne(t *testing.T) {
	rec := record("tiny")
	rec.MemRequestMiB = ptr.To[int64](10)
	rec.MemActualMiB = ptr.To[int64](1)

	res := New(ModeLiveUsage, DefaultThresholds(), testPricing).Evaluate(rec)
	require.Len(t, res.Events, 1)
	assert.Equal(t, int64(1), res.Events[0].MonthlySavings)
}

func TestEventCarriesRequestContainers(t *testing.T) {
	rec := record("web")
	rec.MemRequestMiB = ptr.To[int64](4096)
	rec.MemActualMiB = ptr.To[int64](256)
	rec.MemoryRequestContainers = []string{"app", "proxy"}

	res := New(ModeLiveUsage, DefaultThresholds(), testPricing).Evaluate(rec)

	require.Len(t, res.Events, 1)
	assert.Equal(t, "app,proxy", res.Events[0].Container)
}

func TestHugeQuantitiesStayNonNegative(t *testing.T) {
	rec := record("huge")
	rec.CPURequestMC = ptr.To[int64](1)
	rec.CPULimitMC = ptr.To[int64](math.MaxInt64)
	rec.MemRequestMiB = ptr.To[int64](1)
	rec.MemLimitMiB = ptr.To[int64](math.MaxInt64)

	res := New(ModeFallback, DefaultThresholds(), testPricing).Evaluate(rec)

	require.Len(t, res.Events, 2)
	for _, ev := range res.Events {
		assert.Greater(t, ev.MonthlySavings, int64(0), ev.Type.String())
		assert.Greater(t, ev.WasteQuantity, int64(0), ev.Type.String())
	}
	assert.Greater(t, res.TotalWaste(), int64(0))
}
