package cli

import (
	"context"

	"github.com/spf13/cobra"

	"tabgate/internal/app"
	"tabgate/internal/domain"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Screen and execute a read-only query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				result, err := a.Query.Run(ctx, opts.caller, domain.QueryRequest{
					Text:  args[0],
					Table: table,
				})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "require this table to be registered before executing")
	return cmd
}
