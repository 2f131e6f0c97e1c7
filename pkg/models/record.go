package models

// PodRef identifies a pod or a cluster-scoped resource (empty namespace).
type PodRef struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

func (r PodRef) String() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "/" + r.Name
}

// PodResourceRecord carries the per-pod totals summed over all containers.
// A nil quantity means no container declared it.
type PodResourceRecord struct {
	PodRef

	CPURequestMC  *int64 `json:"cpu_request_mc,omitempty"`
	MemRequestMiB *int64 `json:"mem_request_mib,omitempty"`
	CPULimitMC    *int64 `json:"cpu_limit_mc,omitempty"`
	MemLimitMiB   *int64 `json:"mem_limit_mib,omitempty"`

	// Set only when live usage was sampled for the pod.
	CPUActualMC  *int64 `json:"cpu_actual_mc,omitempty"`
	MemActualMiB *int64 `json:"mem_actual_mib,omitempty"`

	Containers int `json:"containers"`

	// Names of the containers that declared the CPU and memory requests.
	CPURequestContainers    []string `json:"cpu_request_containers,omitempty"`
	MemoryRequestContainers []string `json:"memory_request_containers,omitempty"`

	// MalformedRequests is set when a container carried a request string
	// that could not be parsed.
	MalformedRequests bool `json:"malformed_requests,omitempty"`
}

// Sampled reports whether any live usage is attached.
func (r PodResourceRecord) Sampled() bool {
	return r.CPUActualMC != nil || r.MemActualMiB != nil
}

// WasteEvent is a single detected waste occurrence for one pod or resource.
type WasteEvent struct {
	Type           FindingType `json:"type"`
	Severity       Severity    `json:"severity"`
	Pod            PodRef      `json:"pod"`
	MonthlySavings int64       `json:"monthlySavings"`

	// Container names the containers behind the quantity, comma separated
	// when several declared it.
	Container string `json:"container,omitempty"`

	// WasteQuantity is in MiB for memory, millicores for CPU and whole
	// units otherwise.
	WasteQuantity int64 `json:"wasteQuantity"`

	Requested string `json:"requested,omitempty"`
	Limit     string `json:"limit,omitempty"`
	Actual    string `json:"actual,omitempty"`
}
