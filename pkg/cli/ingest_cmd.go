package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tabgate/internal/app"
	"tabgate/internal/domain"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		kind  string
		table string
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Load CSV/JSON files as queryable tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if table != "" && len(args) > 1 {
				return fmt.Errorf("--table can only be used with a single file")
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				reqs := make([]domain.IngestRequest, 0, len(args))
				for _, path := range args {
					req, err := buildIngestRequest(path, kind, table)
					if err != nil {
						return err
					}
					reqs = append(reqs, req)
				}

				results, err := a.Ingest.IngestMany(ctx, opts.caller, reqs)
				if err != nil {
					return err
				}
				for _, res := range results {
					printIngestResult(cmd.OutOrStdout(), res)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "source kind: csv, json, or jsonl (default: from file extension)")
	cmd.Flags().StringVar(&table, "table", "", "table name (default: derived from the file name)")
	return cmd
}

func buildIngestRequest(path, kindFlag, tableFlag string) (domain.IngestRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.IngestRequest{}, err
	}

	kind := domain.SourceKind(kindFlag)
	if kindFlag == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			kind = domain.SourceCSV
		case ".json":
			kind = domain.SourceJSONArray
		case ".jsonl", ".ndjson":
			kind = domain.SourceJSONLines
		default:
			return domain.IngestRequest{}, fmt.Errorf("cannot infer source kind from %q, pass --kind", path)
		}
	}

	table := tableFlag
	if table == "" {
		table = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return domain.IngestRequest{Kind: kind, Data: data, TableName: table}, nil
}
