package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tabgate/internal/app"
)

func newDropCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table>",
		Short: "Remove a registered table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Ingest.Drop(ctx, opts.caller, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", args[0])
				return nil
			})
		},
	}
}
