package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/opscart/k8s-waste-audit/pkg/reporter"
	"github.com/opscart/k8s-waste-audit/pkg/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.Open(cmd.Context(), a.cfg.Storage, a.log)
			if err != nil {
				return err
			}
			defer store.Close()

			reports, err := store.ListReports(cmd.Context(), limit)
			if err != nil {
				return err
			}

			return printHistory(cmd.OutOrStdout(), reports)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of reports to show")

	return cmd
}

func printHistory(w io.Writer, reports []models.ReportSummary) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "No reports found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLUSTER\tGENERATED\tPODS\tNODES\tFINDINGS\tMONTHLY WASTE")
	for _, r := range reports {
		waste := fmt.Sprintf("$%d", r.MonthlyWaste)
		if r.Estimated {
			waste += " (est.)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.ClusterID, r.GeneratedAt.Format("2006-01-02 15:04:05"),
			r.TotalPods, r.TotalNodes, r.Findings, waste)
	}

	return tw.Flush()
}

func newShowCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Print a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.Open(cmd.Context(), a.cfg.Storage, a.log)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := store.GetReport(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return errors.Errorf("report %s not found", args[0])
			}
			if err != nil {
				return err
			}

			return reporter.WriteFormat(report, reporter.ReportFormat(output), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json, csv")

	return cmd
}
