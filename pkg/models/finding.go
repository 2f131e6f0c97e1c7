package models

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// FindingType identifies one category of waste.
type FindingType int

const (
	MemoryOverprovisioned FindingType = iota + 1
	CPUOverprovisioned
	NoRequests
	OrphanedLoadBalancer
	UnboundStorage
)

// FindingTypes lists every finding type in report order.
var FindingTypes = []FindingType{
	MemoryOverprovisioned,
	CPUOverprovisioned,
	NoRequests,
	OrphanedLoadBalancer,
	UnboundStorage,
}

func (t FindingType) String() string {
	switch t {
	case MemoryOverprovisioned:
		return "MEMORY_OVERPROVISIONED"
	case CPUOverprovisioned:
		return "CPU_OVERPROVISIONED"
	case NoRequests:
		return "NO_REQUESTS"
	case OrphanedLoadBalancer:
		return "ORPHANED_LOAD_BALANCER"
	case UnboundStorage:
		return "UNBOUND_STORAGE"
	default:
		return "UNKNOWN"
	}
}

// Severity is fixed per finding type.
func (t FindingType) Severity() Severity {
	switch t {
	case MemoryOverprovisioned, NoRequests:
		return SeverityHigh
	case CPUOverprovisioned, OrphanedLoadBalancer, UnboundStorage:
		return SeverityMedium
	default:
		return SeverityMedium
	}
}

func (t FindingType) Description() string {
	switch t {
	case MemoryOverprovisioned:
		return "Pods requesting significantly more memory than they use"
	case CPUOverprovisioned:
		return "Pods requesting significantly more CPU than they use"
	case NoRequests:
		return "Pods without resource requests - causes unpredictable scheduling"
	case OrphanedLoadBalancer:
		return "Load balancers with no backend selector"
	case UnboundStorage:
		return "Persistent volumes not bound to any claim"
	default:
		return "Unknown finding"
	}
}

func (t FindingType) Recommendation() string {
	switch t {
	case MemoryOverprovisioned:
		return "Lower memory requests/limits to observed usage plus 50% headroom"
	case CPUOverprovisioned:
		return "Lower CPU requests/limits to observed usage plus 50% headroom"
	case NoRequests:
		return "Set CPU and memory requests so the scheduler can place pods predictably"
	case OrphanedLoadBalancer:
		return "Delete the service or add a selector that matches running pods"
	case UnboundStorage:
		return "Delete released or available volumes that are no longer needed"
	default:
		return ""
	}
}

// PodScoped reports whether the finding counts pods rather than
// infrastructure resources.
func (t FindingType) PodScoped() bool {
	switch t {
	case MemoryOverprovisioned, CPUOverprovisioned, NoRequests:
		return true
	default:
		return false
	}
}

func (t FindingType) MarshalJSON() ([]byte, error) {
	if t.String() == "UNKNOWN" {
		return nil, errors.Errorf("unknown finding type %d", int(t))
	}
	return json.Marshal(t.String())
}

func (t *FindingType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "finding type must be a string")
	}
	parsed, err := ParseFindingType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseFindingType is the inverse of FindingType.String.
func ParseFindingType(s string) (FindingType, error) {
	for _, t := range FindingTypes {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown finding type %q", s)
}

// Severity of a finding.
type Severity int

const (
	SeverityMedium Severity = iota + 1
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	if s.String() == "UNKNOWN" {
		return nil, errors.Errorf("unknown severity %d", int(s))
	}
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.Wrap(err, "severity must be a string")
	}
	switch str {
	case "HIGH":
		*s = SeverityHigh
	case "MEDIUM":
		*s = SeverityMedium
	default:
		return errors.Errorf("unknown severity %q", str)
	}
	return nil
}
