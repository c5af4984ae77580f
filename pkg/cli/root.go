// Package cli implements the tabgate command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tabgate/internal/app"
	"tabgate/internal/config"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	caller     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "tabgate",
		Short:         "Safe query engine for uploaded tabular data",
		Long:          "tabgate ingests CSV/JSON uploads into DuckDB and executes screened read-only queries against them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.caller, "caller", "cli", "caller identity recorded in the audit trail")

	rootCmd.AddCommand(
		newIngestCmd(opts),
		newQueryCmd(opts),
		newTablesCmd(opts),
		newDropCmd(opts),
		newAuditCmd(opts),
	)
	return rootCmd
}

// withApp loads config, wires the engine, runs fn, and tears down.
func (o *rootOptions) withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
