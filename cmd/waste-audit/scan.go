package main

import (
	"context"
	"io"
	"time"

	"github.com/opscart/k8s-waste-audit/pkg/archive"
	"github.com/opscart/k8s-waste-audit/pkg/audit"
	"github.com/opscart/k8s-waste-audit/pkg/datasource"
	"github.com/opscart/k8s-waste-audit/pkg/metrics"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/pricing"
	"github.com/opscart/k8s-waste-audit/pkg/reporter"
	"github.com/opscart/k8s-waste-audit/pkg/scanner"
	"github.com/opscart/k8s-waste-audit/pkg/snapshot"
	"github.com/opscart/k8s-waste-audit/pkg/storage"
	"github.com/opscart/k8s-waste-audit/pkg/submit"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type scanOptions struct {
	dir         string
	kubeconfig  string
	namespace   string
	output      string
	submit      bool
	save        bool
	archive     bool
	metricsFile string
}

func newScanCmd(a *app) *cobra.Command {
	o := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Audit a snapshot directory or a live cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runScan(cmd.Context(), o, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.dir, "dir", "", "Audit directory with pods.json, nodes.json, pvs.json, services.json and usage-pods.txt")
	flags.StringVar(&o.kubeconfig, "kubeconfig", "", "Kubeconfig of the live cluster (default ~/.kube/config)")
	flags.StringVarP(&o.namespace, "namespace", "n", "", "Namespace to scan (default all namespaces)")
	flags.StringVarP(&o.output, "output", "o", "text", "Output format: text, json, csv")
	flags.BoolVar(&o.submit, "submit", false, "Submit the report to the configured endpoint")
	flags.BoolVar(&o.save, "save", false, "Save the report to the database")
	flags.BoolVar(&o.archive, "archive", false, "Upload the report to the S3 bucket")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	flags.String("cluster-name", "", "Cluster name used for the cluster ID")
	flags.String("provider", "", "Cloud provider: azure, aws, gcp, default (auto-detect if empty)")
	flags.String("region", "", "Cloud region (e.g., eastus, us-east-1)")
	flags.String("prometheus-url", "", "Prometheus URL for usage quantiles")
	flags.String("submit-url", "", "Report submission endpoint")
	flags.String("token", "", "Bearer token for report submission")
	a.bind(flags.Lookup("cluster-name"), "cluster-name")
	a.bind(flags.Lookup("provider"), "pricing.provider")
	a.bind(flags.Lookup("region"), "pricing.region")
	a.bind(flags.Lookup("prometheus-url"), "prometheus.url")
	a.bind(flags.Lookup("submit-url"), "submit.url")
	a.bind(flags.Lookup("token"), "submit.token")

	return cmd
}

func (a *app) runScan(ctx context.Context, o *scanOptions, out io.Writer) error {
	format := reporter.ReportFormat(o.output)
	switch format {
	case reporter.FormatText, reporter.FormatJSON, reporter.FormatCSV:
	default:
		return errors.Errorf("output must be text, json or csv, got %q", o.output)
	}
	if o.submit && (a.cfg.Submit.URL == "" || a.cfg.Submit.Token == "") {
		return errors.New("--submit requires a submission URL and --token")
	}

	snap, err := a.loadSnapshot(ctx, o)
	if err != nil {
		return err
	}

	provider, err := pricing.NewProvider(a.cfg.Pricing.ProviderConfig(), snap.Nodes)
	if err != nil {
		return err
	}
	prices, err := pricing.Resolve(ctx, provider, a.cfg.Pricing.ProviderConfig().Overrides)
	if err != nil {
		return err
	}
	a.log.Info("Using pricing", "provider", prices.Provider, "region", prices.Region,
		"memoryPerGiB", prices.MemoryPerGiBMonth, "cpuPerCore", prices.CPUPerCoreMonth)

	report, err := audit.New(a.log, audit.Options{
		Pricing:    prices,
		Thresholds: a.cfg.Thresholds,
		Heuristic:  a.cfg.Heuristic,
	}).Run(ctx, snap)
	if err != nil {
		return err
	}

	if err := reporter.WriteFormat(report, format, out); err != nil {
		return errors.Wrap(err, "can't write report")
	}

	// Sinks run after the report is on stdout. Their failures are logged and
	// do not change the exit code.
	if o.save {
		a.save(ctx, report)
	}
	if o.archive {
		a.upload(ctx, report)
	}
	if o.metricsFile != "" {
		exporter := metrics.NewExporter()
		exporter.Export(report)
		if err := exporter.WriteTextfile(o.metricsFile); err != nil {
			a.log.Error(err, "Can't write metrics textfile", "path", o.metricsFile)
		}
	}

	a.detachNetworkTasks(ctx, o, report)

	return nil
}

func (a *app) loadSnapshot(ctx context.Context, o *scanOptions) (*snapshot.Snapshot, error) {
	if o.dir != "" {
		a.log.Info("Loading audit directory", "dir", o.dir)
		return snapshot.LoadDir(o.dir, a.cfg.ClusterName)
	}

	scan, err := scanner.NewForConfig(a.log, o.kubeconfig)
	if err != nil {
		return nil, errors.Wrap(err, "no data source: pass --dir or a reachable --kubeconfig")
	}

	if a.cfg.Prometheus.PrometheusURL != "" {
		prom, err := datasource.NewPrometheusSource(a.log, a.cfg.Prometheus)
		switch {
		case err != nil:
			a.log.Info("Prometheus initialization failed, falling back to metrics-server", "error", err.Error())
		case !prom.IsAvailable(ctx):
			a.log.Info("Prometheus not reachable, falling back to metrics-server", "url", a.cfg.Prometheus.PrometheusURL)
		default:
			a.log.Info("Using Prometheus usage quantiles", "url", a.cfg.Prometheus.PrometheusURL,
				"lookbackDays", a.cfg.Prometheus.LookbackDays, "quantile", a.cfg.Prometheus.Quantile)
			scan.WithUsageSource(prom)
		}
	}

	return scan.Collect(ctx, o.namespace, a.cfg.ClusterName)
}

func (a *app) save(ctx context.Context, report *models.Report) {
	store, err := storage.Open(ctx, a.cfg.Storage, a.log)
	if err != nil {
		a.log.Error(err, "Can't open report store")
		return
	}
	defer store.Close()

	id, err := store.SaveReport(ctx, report)
	if err != nil {
		a.log.Error(err, "Can't save report")
		return
	}
	a.log.Info("Saved report", "id", id)
}

func (a *app) upload(ctx context.Context, report *models.Report) {
	archiver, err := archive.New(a.cfg.Archive)
	if err != nil {
		a.log.Error(err, "Can't create archiver")
		return
	}

	object, err := archiver.Put(ctx, report)
	if err != nil {
		a.log.Error(err, "Can't archive report")
		return
	}
	a.log.Info("Archived report", "bucket", a.cfg.Archive.Bucket, "object", object)
}

// detachNetworkTasks starts submission and the telemetry beacon and waits at
// most the submission timeout for both.
func (a *app) detachNetworkTasks(ctx context.Context, o *scanOptions, report *models.Report) {
	client := submit.NewClient(a.cfg.Submit)
	timeout := a.cfg.Submit.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var tasks []<-chan struct{}
	if o.submit {
		tasks = append(tasks, submit.Detach(ctx, timeout, a.log, "submit", func(ctx context.Context) error {
			return client.Submit(ctx, report)
		}))
	}
	if !a.cfg.NoTelemetry {
		stats := submit.StatsOf(report)
		tasks = append(tasks, submit.Detach(ctx, timeout, a.log, "beacon", func(ctx context.Context) error {
			return client.Beacon(ctx, stats)
		}))
	}

	if !submit.Wait(timeout, tasks...) {
		a.log.Info("Background tasks did not finish in time", "timeout", timeout.String())
	}
}
