package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"tabgate/internal/domain"
)

func printResult(w io.Writer, result *domain.ExecutionResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(w, "(%d rows in %s)\n", result.RowCount, result.Elapsed)
}

func printIngestResult(w io.Writer, res *domain.IngestResult) {
	fmt.Fprintf(w, "table %s: %d rows\n", res.TableName, res.RowCount)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "column\ttype\tsource")
	for _, col := range res.Schema {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", col.Name, col.Type, col.SourcePath)
	}
	tw.Flush()
}

func printTables(w io.Writer, tables []domain.Table) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "table\tcolumns\trows\tcreated")
	for _, t := range tables {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", t.Name, len(t.Columns), t.RowCount, t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}

func printAudit(w io.Writer, entries []domain.AuditEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "when\tcaller\taction\tstatus\treason\trows\ttext")
	for _, e := range entries {
		text := e.QueryText
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.CreatedAt.Format("15:04:05"), e.Caller, e.Action, e.Status, e.Reason, e.RowsReturned, text)
	}
	tw.Flush()
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}
