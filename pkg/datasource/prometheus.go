package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/snapshot"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PrometheusSource turns container metrics into per-pod usage rows, using a
// high quantile over the lookback window instead of an instant sample.
type PrometheusSource struct {
	log    logr.Logger
	client v1.API
	cfg    Config
}

func NewPrometheusSource(log logr.Logger, cfg Config) (*PrometheusSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := api.NewClient(api.Config{
		Address: cfg.PrometheusURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Prometheus client")
	}

	return &PrometheusSource{
		log:    log,
		client: v1.NewAPI(client),
		cfg:    cfg,
	}, nil
}

func (p *PrometheusSource) Name() string {
	return "prometheus"
}

// IsAvailable checks if Prometheus answers queries.
func (p *PrometheusSource) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

// PodUsage returns one row per pod that has both CPU and memory series.
// An empty namespace means all namespaces.
func (p *PrometheusSource) PodUsage(ctx context.Context, namespace string) ([]snapshot.UsageRow, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	now := time.Now()

	cpu, err := p.queryByPod(ctx, p.cpuQuery(namespace), now)
	if err != nil {
		return nil, errors.Wrap(err, "CPU query failed")
	}

	mem, err := p.queryByPod(ctx, p.memoryQuery(namespace), now)
	if err != nil {
		return nil, errors.Wrap(err, "memory query failed")
	}

	rows := make([]snapshot.UsageRow, 0, len(cpu))
	for key, cores := range cpu {
		bytes, ok := mem[key]
		if !ok {
			continue
		}
		rows = append(rows, snapshot.UsageRow{
			Namespace: key.namespace,
			Name:      key.pod,
			CPU:       fmt.Sprintf("%dm", models.Clamp(cores*1000)),
			Memory:    fmt.Sprintf("%dKi", models.Clamp(bytes)/1024),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Namespace != rows[j].Namespace {
			return rows[i].Namespace < rows[j].Namespace
		}
		return rows[i].Name < rows[j].Name
	})

	return rows, nil
}

func (p *PrometheusSource) selector(namespace string) string {
	sel := []string{`container!=""`, `container!="POD"`}
	if namespace != "" {
		sel = append(sel, fmt.Sprintf(`namespace=%q`, namespace))
	}
	return strings.Join(sel, ",")
}

func (p *PrometheusSource) cpuQuery(namespace string) string {
	return fmt.Sprintf(
		`sum by (namespace, pod) (quantile_over_time(%g, rate(container_cpu_usage_seconds_total{%s}[5m])[%dd:5m]))`,
		p.cfg.Quantile, p.selector(namespace), p.cfg.LookbackDays)
}

func (p *PrometheusSource) memoryQuery(namespace string) string {
	return fmt.Sprintf(
		`sum by (namespace, pod) (quantile_over_time(%g, container_memory_working_set_bytes{%s}[%dd]))`,
		p.cfg.Quantile, p.selector(namespace), p.cfg.LookbackDays)
}

type podKey struct {
	namespace string
	pod       string
}

func (p *PrometheusSource) queryByPod(ctx context.Context, query string, ts time.Time) (map[podKey]float64, error) {
	result, warnings, err := p.client.Query(ctx, query, ts)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}

	if len(warnings) > 0 {
		p.log.Info("Prometheus returned warnings", "warnings", warnings)
	}

	if result == nil {
		return map[podKey]float64{}, nil
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, errors.Errorf("unexpected result type %s", result.Type())
	}

	values := make(map[podKey]float64, len(vector))
	for _, sample := range vector {
		key := podKey{
			namespace: string(sample.Metric["namespace"]),
			pod:       string(sample.Metric["pod"]),
		}
		if key.pod == "" {
			continue
		}
		values[key] += float64(sample.Value)
	}

	return values, nil
}
