package models

import "time"

// MaxExamples bounds the examples kept per finding.
const MaxExamples = 5

// Example is one retained waste event of a finding.
type Example struct {
	Namespace     string `json:"namespace,omitempty"`
	Name          string `json:"pod"`
	Container     string `json:"container,omitempty"`
	WastePerMonth int64  `json:"wastePerMonth"`
	Request       string `json:"request,omitempty"`
	Limit         string `json:"limit,omitempty"`
	Usage         string `json:"usage,omitempty"`
}

// FindingAggregate groups every event of one type.
type FindingAggregate struct {
	ID             string      `json:"id"`
	Type           FindingType `json:"type"`
	Severity       Severity    `json:"severity"`
	PodsAffected   int         `json:"podsAffected"`
	MonthlySavings int64       `json:"monthlySavings"`
	Description    string      `json:"description"`
	Examples       []Example   `json:"examples"`
	Recommendation string      `json:"recommendation"`
}

// TopOffender is the pod with the largest individual waste in a run.
type TopOffender struct {
	Pod          PodResourceRecord `json:"pod"`
	MonthlyWaste int64             `json:"monthlyWaste"`
}

// ClusterSummary carries cluster-wide totals gathered during a run.
type ClusterSummary struct {
	Pods                  int
	Nodes                 int
	UnboundStorageGiB     float64
	OrphanedLoadBalancers int
	Breakdown             Breakdown
}

// Details are the counters behind the findings.
type Details struct {
	PodsOverProvisioned   int     `json:"pods_over_provisioned"`
	PodsNoRequests        int     `json:"pods_no_requests"`
	OrphanedLoadBalancers int     `json:"orphaned_load_balancers"`
	UnboundStorageGB      float64 `json:"unbound_storage_gb"`
	PodsUnsampled         int     `json:"pods_unsampled"`
	Mode                  string  `json:"mode"`
}

// Report is the final structured output of one run.
type Report struct {
	Timestamp   time.Time          `json:"timestamp"`
	ClusterID   string             `json:"clusterId"`
	TotalPods   int                `json:"totalPods"`
	TotalNodes  int                `json:"totalNodes"`
	Costs       Costs              `json:"costs"`
	Findings    []FindingAggregate `json:"findings"`
	Breakdown   Breakdown          `json:"breakdown"`
	Details     Details            `json:"details"`
	TopOffender *TopOffender       `json:"topOffender,omitempty"`
	Pricing     PricingModel       `json:"pricing"`
}

// ReportSummary is the stored, listable header of a report.
type ReportSummary struct {
	ID           string    `db:"id"`
	ClusterID    string    `db:"cluster_id"`
	GeneratedAt  time.Time `db:"generated_at"`
	TotalPods    int       `db:"total_pods"`
	TotalNodes   int       `db:"total_nodes"`
	MonthlyWaste int64     `db:"monthly_waste"`
	Estimated    bool      `db:"estimated"`
	Findings     int       `db:"findings"`
}
