// Package scanner collects a snapshot from a live cluster.
package scanner

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/opscart/k8s-waste-audit/pkg/snapshot"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// UsageSource supplies live usage samples per pod.
type UsageSource interface {
	PodUsage(ctx context.Context, namespace string) ([]snapshot.UsageRow, error)
	Name() string
}

type Scanner struct {
	log       logr.Logger
	clientset kubernetes.Interface
	usage     UsageSource
}

// NewForConfig connects to the cluster of kubeconfig, or of
// ~/.kube/config when empty. Usage defaults to metrics-server.
func NewForConfig(log logr.Logger, kubeconfig string) (*Scanner, error) {
	if kubeconfig == "" {
		if home := homedir.HomeDir(); home != "" {
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build config")
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create clientset")
	}

	metricsClient, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create metrics client")
	}

	return New(log, clientset, NewMetricsServerSource(metricsClient)), nil
}

// New creates a scanner over an existing clientset. A nil usage source
// yields snapshots without usage.
func New(log logr.Logger, clientset kubernetes.Interface, usage UsageSource) *Scanner {
	return &Scanner{log: log, clientset: clientset, usage: usage}
}

// WithUsageSource replaces the usage source, e.g. with Prometheus.
func (s *Scanner) WithUsageSource(usage UsageSource) *Scanner {
	s.usage = usage
	return s
}

// Collect lists pods, nodes, volumes and services concurrently and samples
// usage. Listing failures are fatal. A failing usage source only drops the
// usage table so that the audit falls back to declared resources.
func (s *Scanner) Collect(ctx context.Context, namespace, clusterName string) (*snapshot.Snapshot, error) {
	version, err := s.clientset.Discovery().ServerVersion()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to cluster")
	}
	s.log.Info("Connected to cluster", "version", version.GitVersion)

	snap := &snapshot.Snapshot{ClusterName: clusterName}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pods, err := s.clientset.CoreV1().Pods(namespace).List(gctx, metav1.ListOptions{})
		if err != nil {
			return errors.Wrap(err, "failed to list pods")
		}
		snap.Pods = convertPods(pods.Items)
		return nil
	})

	g.Go(func() error {
		nodes, err := s.clientset.CoreV1().Nodes().List(gctx, metav1.ListOptions{})
		if err != nil {
			return errors.Wrap(err, "failed to list nodes")
		}
		snap.Nodes = convertNodes(nodes.Items)
		return nil
	})

	g.Go(func() error {
		pvs, err := s.clientset.CoreV1().PersistentVolumes().List(gctx, metav1.ListOptions{})
		if err != nil {
			return errors.Wrap(err, "failed to list persistent volumes")
		}
		snap.PersistentVolumes = convertPersistentVolumes(pvs.Items)
		return nil
	})

	g.Go(func() error {
		services, err := s.clientset.CoreV1().Services(namespace).List(gctx, metav1.ListOptions{})
		if err != nil {
			return errors.Wrap(err, "failed to list services")
		}
		snap.Services = convertServices(services.Items)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := snap.Validate(); err != nil {
		if namespace == "" {
			namespace = "all namespaces"
		}
		return nil, errors.Wrapf(err, "no pods in %s", namespace)
	}

	if s.usage != nil {
		rows, err := s.usage.PodUsage(ctx, namespace)
		if err != nil {
			s.log.Error(err, "Usage source unavailable, comparing limits against requests", "source", s.usage.Name())
		} else {
			snap.Usage = rows
			s.log.Info("Sampled pod usage", "source", s.usage.Name(), "pods", len(rows))
		}
	}

	return snap, nil
}

func convertPods(items []corev1.Pod) []snapshot.Pod {
	pods := make([]snapshot.Pod, 0, len(items))
	for _, pod := range items {
		p := snapshot.Pod{Namespace: pod.Namespace, Name: pod.Name}
		for _, c := range pod.Spec.Containers {
			p.Containers = append(p.Containers, snapshot.Container{
				Name:     c.Name,
				Requests: resources(c.Resources.Requests),
				Limits:   resources(c.Resources.Limits),
			})
		}
		pods = append(pods, p)
	}
	return pods
}

// resources keeps the declared notation of each quantity.
func resources(list corev1.ResourceList) snapshot.Resources {
	var r snapshot.Resources
	if q, ok := list[corev1.ResourceCPU]; ok {
		r.CPU = q.String()
	}
	if q, ok := list[corev1.ResourceMemory]; ok {
		r.Memory = q.String()
	}
	return r
}

func convertNodes(items []corev1.Node) []snapshot.Node {
	nodes := make([]snapshot.Node, 0, len(items))
	for _, node := range items {
		nodes = append(nodes, snapshot.Node{
			Name:       node.Name,
			ProviderID: node.Spec.ProviderID,
			Labels:     node.Labels,
		})
	}
	return nodes
}

func convertPersistentVolumes(items []corev1.PersistentVolume) []snapshot.PersistentVolume {
	pvs := make([]snapshot.PersistentVolume, 0, len(items))
	for _, pv := range items {
		capacity := ""
		if q, ok := pv.Spec.Capacity[corev1.ResourceStorage]; ok {
			capacity = q.String()
		}
		pvs = append(pvs, snapshot.PersistentVolume{
			Name:     pv.Name,
			Phase:    string(pv.Status.Phase),
			Capacity: capacity,
		})
	}
	return pvs
}

func convertServices(items []corev1.Service) []snapshot.Service {
	services := make([]snapshot.Service, 0, len(items))
	for _, svc := range items {
		services = append(services, snapshot.Service{
			Namespace: svc.Namespace,
			Name:      svc.Name,
			Type:      string(svc.Spec.Type),
			Selector:  svc.Spec.Selector,
		})
	}
	return services
}

// MetricsServerSource reads instant usage from metrics-server.
type MetricsServerSource struct {
	client metricsv.Interface
}

func NewMetricsServerSource(client metricsv.Interface) *MetricsServerSource {
	return &MetricsServerSource{client: client}
}

func (m *MetricsServerSource) Name() string {
	return "metrics-server"
}

// PodUsage sums container usage per pod. Memory is reported in Ki so that
// the byte counts of metrics-server survive conversion.
func (m *MetricsServerSource) PodUsage(ctx context.Context, namespace string) ([]snapshot.UsageRow, error) {
	podMetrics, err := m.client.MetricsV1beta1().PodMetricses(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pod metrics")
	}

	rows := make([]snapshot.UsageRow, 0, len(podMetrics.Items))
	for _, pm := range podMetrics.Items {
		var cpuMC, memBytes int64
		for _, c := range pm.Containers {
			if q, ok := c.Usage[corev1.ResourceCPU]; ok {
				cpuMC += q.MilliValue()
			}
			if q, ok := c.Usage[corev1.ResourceMemory]; ok {
				memBytes += q.Value()
			}
		}
		rows = append(rows, snapshot.UsageRow{
			Namespace: pm.Namespace,
			Name:      pm.Name,
			CPU:       fmt.Sprintf("%dm", cpuMC),
			Memory:    fmt.Sprintf("%dKi", memBytes/1024),
		})
	}

	return rows, nil
}
