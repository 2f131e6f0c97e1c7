// Package findings accumulates waste events into per-type aggregates and
// tracks the single worst pod of a run.
package findings

import (
	"sort"

	"github.com/opscart/k8s-waste-audit/pkg/models"
)

// Collector groups waste events by finding type. It is owned by one run and
// not safe for concurrent use.
type Collector struct {
	byType map[models.FindingType]*models.FindingAggregate
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{byType: make(map[models.FindingType]*models.FindingAggregate)}
}

// Record adds ev to the aggregate of its type, creating it on first use.
// Only events with positive savings are kept as examples, at most
// models.MaxExamples of them, in arrival order.
func (c *Collector) Record(ev models.WasteEvent) {
	agg, ok := c.byType[ev.Type]
	if !ok {
		agg = &models.FindingAggregate{
			Type:           ev.Type,
			Severity:       ev.Type.Severity(),
			Description:    ev.Type.Description(),
			Recommendation: ev.Type.Recommendation(),
			Examples:       []models.Example{},
		}
		c.byType[ev.Type] = agg
	}

	agg.PodsAffected++
	agg.MonthlySavings = models.AddSaturating(agg.MonthlySavings, ev.MonthlySavings)

	if ev.MonthlySavings > 0 && len(agg.Examples) < models.MaxExamples {
		agg.Examples = append(agg.Examples, models.Example{
			Namespace:     ev.Pod.Namespace,
			Name:          ev.Pod.Name,
			Container:     ev.Container,
			WastePerMonth: ev.MonthlySavings,
			Request:       ev.Requested,
			Limit:         ev.Limit,
			Usage:         ev.Actual,
		})
	}
}

// Get returns the aggregate of one type.
func (c *Collector) Get(t models.FindingType) (models.FindingAggregate, bool) {
	agg, ok := c.byType[t]
	if !ok {
		return models.FindingAggregate{}, false
	}
	return *agg, true
}

// Savings returns the total monthly savings recorded for one type.
func (c *Collector) Savings(t models.FindingType) int64 {
	if agg, ok := c.byType[t]; ok {
		return agg.MonthlySavings
	}
	return 0
}

// Aggregates returns copies of all aggregates, largest savings first. Ties
// keep the order of models.FindingTypes.
func (c *Collector) Aggregates() []models.FindingAggregate {
	out := make([]models.FindingAggregate, 0, len(c.byType))
	for _, t := range models.FindingTypes {
		if agg, ok := c.byType[t]; ok {
			cp := *agg
			cp.Examples = append([]models.Example{}, agg.Examples...)
			out = append(out, cp)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MonthlySavings > out[j].MonthlySavings
	})

	return out
}

// Len is the number of distinct finding types seen.
func (c *Collector) Len() int {
	return len(c.byType)
}
