package findings

import "github.com/opscart/k8s-waste-audit/pkg/models"

// TopOffenderTracker remembers the pod with the largest total waste.
type TopOffenderTracker struct {
	top *models.TopOffender
}

// Consider replaces the current top offender only when totalWaste is
// strictly greater, so the first of equal pods wins. Zero waste never
// qualifies.
func (t *TopOffenderTracker) Consider(rec models.PodResourceRecord, totalWaste int64) {
	if totalWaste <= 0 {
		return
	}
	if t.top != nil && totalWaste <= t.top.MonthlyWaste {
		return
	}
	t.top = &models.TopOffender{Pod: rec, MonthlyWaste: totalWaste}
}

// Top returns the current top offender or nil.
func (t *TopOffenderTracker) Top() *models.TopOffender {
	if t.top == nil {
		return nil
	}
	cp := *t.top
	return &cp
}
