package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/opscart/k8s-waste-audit/pkg/config"
	"github.com/opscart/k8s-waste-audit/pkg/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app is the state shared by all subcommands once the root command's
// pre-run has loaded configuration and built the logger.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log logr.Logger

	configFile string
	verbose    bool
	jsonLogs   bool

	flush func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New(), flush: func() {}}

	rootCmd := &cobra.Command{
		Use:   "waste-audit",
		Short: "Kubernetes resource waste audit",
		Long: `Estimate the monthly cost of over-provisioned pods, pods without requests,
orphaned load balancers and unbound persistent volumes from a cluster snapshot.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
		PersistentPostRun: func(*cobra.Command, []string) { a.flush() },
	}

	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&a.jsonLogs, "log-json", false, "Log as JSON")
	rootCmd.PersistentFlags().String("dsn", "", "Report store DSN")
	rootCmd.PersistentFlags().String("driver", "", "Report store driver: postgres, mysql")
	a.bind(rootCmd.PersistentFlags().Lookup("dsn"), "storage.dsn")
	a.bind(rootCmd.PersistentFlags().Lookup("driver"), "storage.driver")

	rootCmd.AddCommand(newScanCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newShowCmd(a))

	return rootCmd
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	log, flush, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs})
	if err != nil {
		return err
	}
	a.log, a.flush = log, flush

	if a.cfg, err = config.Load(a.v, a.configFile); err != nil {
		return err
	}

	return errors.Wrap(a.cfg.Validate(), "invalid configuration")
}

// bind ties a flag to a configuration key so that a set flag wins over
// file and environment.
func (a *app) bind(flag *pflag.Flag, key string) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
