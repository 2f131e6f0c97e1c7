// Package snapshot holds the immutable, point-in-time cluster input of a run
// and loads it from audit directories.
package snapshot

import "github.com/pkg/errors"

// ErrEmptySnapshot is returned when no pod data could be obtained. No report
// can be built from such a snapshot.
var ErrEmptySnapshot = errors.New("snapshot contains no pods")

// Snapshot is everything one run looks at. It is never mutated once built.
type Snapshot struct {
	ClusterName       string
	Pods              []Pod
	Nodes             []Node
	PersistentVolumes []PersistentVolume
	Services          []Service

	// Usage is the optional live-usage table. Empty means unavailable.
	Usage []UsageRow
}

// HasUsage reports whether live usage samples are available.
func (s *Snapshot) HasUsage() bool {
	return len(s.Usage) > 0
}

// Validate rejects snapshots that cannot produce a meaningful report.
func (s *Snapshot) Validate() error {
	if s == nil || len(s.Pods) == 0 {
		return ErrEmptySnapshot
	}
	return nil
}

type Pod struct {
	Namespace  string
	Name       string
	Containers []Container
}

type Container struct {
	Name     string
	Requests Resources
	Limits   Resources
}

// Resources are raw quantity strings. An empty string means not declared.
type Resources struct {
	CPU    string
	Memory string
}

type Node struct {
	Name       string
	ProviderID string
	Labels     map[string]string
}

type PersistentVolume struct {
	Name     string
	Phase    string
	Capacity string
}

type Service struct {
	Namespace string
	Name      string
	Type      string
	Selector  map[string]string
}

// UsageRow is one line of the live-usage table.
type UsageRow struct {
	Namespace string
	Name      string
	CPU       string
	Memory    string
}
