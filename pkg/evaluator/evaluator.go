// Package evaluator decides whether a pod wastes memory or CPU and prices
// the waste.
package evaluator

import (
	"strings"

	"github.com/opscart/k8s-waste-audit/pkg/aggregator"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/pricing"
	"github.com/opscart/k8s-waste-audit/pkg/quantity"
	"github.com/pkg/errors"
)

// Mode selects the waste rule set. It is chosen once per run.
type Mode int

const (
	// ModeLiveUsage compares requests against sampled usage.
	ModeLiveUsage Mode = iota + 1
	// ModeFallback compares limits against requests.
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeLiveUsage:
		return "live"
	case ModeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// SelectMode returns ModeLiveUsage if the run has usage samples.
func SelectMode(hasUsage bool) Mode {
	if hasUsage {
		return ModeLiveUsage
	}
	return ModeFallback
}

// Thresholds are the ratios that flag a pod and the headroom kept when
// billing the waste.
type Thresholds struct {
	// LiveFlagRatio flags a pod when request > ratio × actual.
	LiveFlagRatio float64 `mapstructure:"live-flag-ratio"`
	// FallbackMemFlagRatio flags memory when limit > ratio × request.
	FallbackMemFlagRatio float64 `mapstructure:"fallback-memory-flag-ratio"`
	// FallbackCPUFlagRatio flags CPU when limit > ratio × request.
	FallbackCPUFlagRatio float64 `mapstructure:"fallback-cpu-flag-ratio"`
	// Headroom is the multiple of the baseline that is not billed as waste.
	Headroom float64 `mapstructure:"headroom"`
}

// DefaultThresholds flags at 2× (live and fallback memory) or 3× (fallback
// CPU) and keeps 50% headroom.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LiveFlagRatio:        2,
		FallbackMemFlagRatio: 2,
		FallbackCPUFlagRatio: 3,
		Headroom:             1.5,
	}
}

// Validate rejects ratios that would flag healthy pods or bill more than
// the declared quantity.
func (t Thresholds) Validate() error {
	if t.LiveFlagRatio <= 1 || t.FallbackMemFlagRatio <= 1 || t.FallbackCPUFlagRatio <= 1 {
		return errors.New("flag ratios must be greater than 1")
	}
	if t.Headroom < 1 {
		return errors.New("headroom must be at least 1")
	}
	return nil
}

// Result is the outcome of evaluating one pod.
type Result struct {
	Events []models.WasteEvent

	NoRequests bool
	// Unsampled is set in live mode for pods without usage.
	Unsampled bool
}

// TotalWaste sums the monthly savings of all events.
func (r Result) TotalWaste() int64 {
	var total int64
	for _, e := range r.Events {
		total = models.AddSaturating(total, e.MonthlySavings)
	}
	return total
}

// Evaluator applies one mode's rules at fixed thresholds and prices.
type Evaluator struct {
	mode       Mode
	thresholds Thresholds
	pricing    models.PricingModel
}

// New creates an evaluator for one run.
func New(mode Mode, thresholds Thresholds, pricing models.PricingModel) *Evaluator {
	return &Evaluator{mode: mode, thresholds: thresholds, pricing: pricing}
}

// Mode returns the rule set of the evaluator.
func (e *Evaluator) Mode() Mode {
	return e.mode
}

// Evaluate applies the rules of the evaluator's mode to rec. Memory and CPU
// are judged independently, so a pod may yield two events. A pod without
// requests yields a single NO_REQUESTS event with zero savings.
func (e *Evaluator) Evaluate(rec models.PodResourceRecord) Result {
	if aggregator.NoRequests(rec) {
		return Result{
			NoRequests: true,
			Events: []models.WasteEvent{{
				Type:     models.NoRequests,
				Severity: models.NoRequests.Severity(),
				Pod:      rec.PodRef,
			}},
		}
	}

	var res Result
	switch e.mode {
	case ModeLiveUsage:
		if !rec.Sampled() {
			res.Unsampled = true
			return res
		}
		if ev, ok := e.liveMemory(rec); ok {
			res.Events = append(res.Events, ev)
		}
		if ev, ok := e.liveCPU(rec); ok {
			res.Events = append(res.Events, ev)
		}
	case ModeFallback:
		if ev, ok := e.fallbackMemory(rec); ok {
			res.Events = append(res.Events, ev)
		}
		if ev, ok := e.fallbackCPU(rec); ok {
			res.Events = append(res.Events, ev)
		}
	}

	return res
}

func (e *Evaluator) liveMemory(rec models.PodResourceRecord) (models.WasteEvent, bool) {
	if rec.MemRequestMiB == nil || rec.MemActualMiB == nil {
		return models.WasteEvent{}, false
	}
	request, actual := float64(*rec.MemRequestMiB), float64(*rec.MemActualMiB)
	if request <= e.thresholds.LiveFlagRatio*actual {
		return models.WasteEvent{}, false
	}

	ev := e.memoryEvent(rec, request-e.thresholds.Headroom*actual)
	ev.Actual = quantity.FormatMiB(*rec.MemActualMiB)
	return ev, true
}

func (e *Evaluator) liveCPU(rec models.PodResourceRecord) (models.WasteEvent, bool) {
	if rec.CPURequestMC == nil || rec.CPUActualMC == nil {
		return models.WasteEvent{}, false
	}
	request, actual := float64(*rec.CPURequestMC), float64(*rec.CPUActualMC)
	if request <= e.thresholds.LiveFlagRatio*actual {
		return models.WasteEvent{}, false
	}

	ev := e.cpuEvent(rec, request-e.thresholds.Headroom*actual)
	ev.Actual = quantity.FormatMillicores(*rec.CPUActualMC)
	return ev, true
}

func (e *Evaluator) fallbackMemory(rec models.PodResourceRecord) (models.WasteEvent, bool) {
	if rec.MemRequestMiB == nil || rec.MemLimitMiB == nil {
		return models.WasteEvent{}, false
	}
	request, limit := float64(*rec.MemRequestMiB), float64(*rec.MemLimitMiB)
	if limit <= e.thresholds.FallbackMemFlagRatio*request {
		return models.WasteEvent{}, false
	}

	return e.memoryEvent(rec, limit-e.thresholds.Headroom*request), true
}

func (e *Evaluator) fallbackCPU(rec models.PodResourceRecord) (models.WasteEvent, bool) {
	if rec.CPURequestMC == nil || rec.CPULimitMC == nil {
		return models.WasteEvent{}, false
	}
	request, limit := float64(*rec.CPURequestMC), float64(*rec.CPULimitMC)
	if limit <= e.thresholds.FallbackCPUFlagRatio*request {
		return models.WasteEvent{}, false
	}

	return e.cpuEvent(rec, limit-e.thresholds.Headroom*request), true
}

func (e *Evaluator) memoryEvent(rec models.PodResourceRecord, wasteMiB float64) models.WasteEvent {
	ev := models.WasteEvent{
		Type:           models.MemoryOverprovisioned,
		Severity:       models.MemoryOverprovisioned.Severity(),
		Pod:            rec.PodRef,
		MonthlySavings: pricing.MonthlyCost(wasteMiB/1024, e.pricing.MemoryPerGiBMonth),
		WasteQuantity:  models.Clamp(wasteMiB),
		Requested:      quantity.FormatMiB(*rec.MemRequestMiB),
		Container:      strings.Join(rec.MemoryRequestContainers, ","),
	}
	if rec.MemLimitMiB != nil {
		ev.Limit = quantity.FormatMiB(*rec.MemLimitMiB)
	}
	return ev
}

func (e *Evaluator) cpuEvent(rec models.PodResourceRecord, wasteMC float64) models.WasteEvent {
	ev := models.WasteEvent{
		Type:           models.CPUOverprovisioned,
		Severity:       models.CPUOverprovisioned.Severity(),
		Pod:            rec.PodRef,
		MonthlySavings: pricing.MonthlyCost(wasteMC/1000, e.pricing.CPUPerCoreMonth),
		WasteQuantity:  models.Clamp(wasteMC),
		Requested:      quantity.FormatMillicores(*rec.CPURequestMC),
		Container:      strings.Join(rec.CPURequestContainers, ","),
	}
	if rec.CPULimitMC != nil {
		ev.Limit = quantity.FormatMillicores(*rec.CPULimitMC)
	}
	return ev
}
