package pricing

import (
	"strings"

	"github.com/opscart/k8s-waste-audit/pkg/snapshot"
)

// DetectProvider attempts to detect the cloud provider from node provider
// IDs and labels. Only the first node is inspected.
func DetectProvider(nodes []snapshot.Node) (string, string) {
	if len(nodes) == 0 {
		return "default", "unknown"
	}

	node := nodes[0]
	labels := node.Labels

	// Check provider ID first
	if providerID := node.ProviderID; providerID != "" {
		if strings.HasPrefix(providerID, "azure://") {
			return "azure", extractRegion(labels, "eastus")
		}
		if strings.HasPrefix(providerID, "aws://") {
			return "aws", extractRegion(labels, "us-east-1")
		}
		if strings.HasPrefix(providerID, "gce://") {
			return "gcp", extractRegion(labels, "us-central1")
		}
	}

	// Check common labels
	if _, exists := labels["kubernetes.azure.com/cluster"]; exists {
		return "azure", extractRegion(labels, "eastus")
	}

	if _, exists := labels["eks.amazonaws.com/nodegroup"]; exists {
		return "aws", extractRegion(labels, "us-east-1")
	}

	if _, exists := labels["cloud.google.com/gke-nodepool"]; exists {
		return "gcp", extractRegion(labels, "us-central1")
	}

	return "default", "unknown"
}

func extractRegion(labels map[string]string, fallback string) string {
	if region, exists := labels["topology.kubernetes.io/region"]; exists {
		return region
	}
	if region, exists := labels["failure-domain.beta.kubernetes.io/region"]; exists {
		return region
	}
	return fallback
}
