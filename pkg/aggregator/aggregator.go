// Package aggregator folds per-container resource declarations into one
// record per pod.
package aggregator

import (
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/quantity"
	"github.com/opscart/k8s-waste-audit/pkg/snapshot"
	"k8s.io/utils/ptr"
)

// Aggregate sums the requests and limits of all containers of a pod. A
// dimension that no container declares stays nil. Init containers are not
// part of the snapshot model and therefore never counted.
func Aggregate(pod snapshot.Pod) models.PodResourceRecord {
	rec := models.PodResourceRecord{
		PodRef:     models.PodRef{Namespace: pod.Namespace, Name: pod.Name},
		Containers: len(pod.Containers),
	}

	for _, c := range pod.Containers {
		if c.Requests.CPU != "" {
			mc, ok := quantity.ToMillicores(c.Requests.CPU)
			if ok {
				rec.CPURequestMC = add(rec.CPURequestMC, mc)
				rec.CPURequestContainers = append(rec.CPURequestContainers, c.Name)
			} else {
				rec.MalformedRequests = true
			}
		}
		if c.Requests.Memory != "" {
			mib, ok := quantity.ToMiB(c.Requests.Memory)
			if ok {
				rec.MemRequestMiB = add(rec.MemRequestMiB, mib)
				rec.MemoryRequestContainers = append(rec.MemoryRequestContainers, c.Name)
			} else {
				rec.MalformedRequests = true
			}
		}
		if mc, ok := quantity.ToMillicores(c.Limits.CPU); ok {
			rec.CPULimitMC = add(rec.CPULimitMC, mc)
		}
		if mib, ok := quantity.ToMiB(c.Limits.Memory); ok {
			rec.MemLimitMiB = add(rec.MemLimitMiB, mib)
		}
	}

	return rec
}

// NoRequests reports whether the pod declares neither a CPU nor a memory
// request. A request that was present but unparseable does not count as
// missing.
func NoRequests(rec models.PodResourceRecord) bool {
	if rec.MalformedRequests {
		return false
	}
	return ptr.Deref(rec.CPURequestMC, 0) == 0 && ptr.Deref(rec.MemRequestMiB, 0) == 0
}

// Attach sets the live usage of rec from row. Unparseable usage columns are
// left unset.
func Attach(rec *models.PodResourceRecord, row snapshot.UsageRow) {
	if mc, ok := quantity.ToMillicores(row.CPU); ok {
		rec.CPUActualMC = ptr.To(mc)
	}
	if mib, ok := quantity.ToMiB(row.Memory); ok {
		rec.MemActualMiB = ptr.To(mib)
	}
}

// UsageIndex looks up usage rows by pod.
type UsageIndex map[models.PodRef]snapshot.UsageRow

// NewUsageIndex indexes rows by namespace and name. Later duplicates win.
func NewUsageIndex(rows []snapshot.UsageRow) UsageIndex {
	idx := make(UsageIndex, len(rows))
	for _, row := range rows {
		idx[models.PodRef{Namespace: row.Namespace, Name: row.Name}] = row
	}
	return idx
}

// Lookup returns the usage row of a pod, if any.
func (idx UsageIndex) Lookup(ref models.PodRef) (snapshot.UsageRow, bool) {
	row, ok := idx[ref]
	return row, ok
}

// add sums quantities, saturating at math.MaxInt64.
func add(total *int64, v int64) *int64 {
	return ptr.To(models.AddSaturating(ptr.Deref(total, 0), v))
}
