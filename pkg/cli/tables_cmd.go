package cli

import (
	"context"

	"github.com/spf13/cobra"

	"tabgate/internal/app"
)

func newTablesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List registered tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(_ context.Context, a *app.App) error {
				printTables(cmd.OutOrStdout(), a.Catalog.List())
				return nil
			})
		},
	}
}
