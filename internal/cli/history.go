package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/entl/dbdeck/internal/history"
)

// newHistoryCommand lists, searches and prunes query history.
func newHistoryCommand(rf *rootFlags) *cobra.Command {
	var (
		format  string
		archive bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history [search term]",
		Short: "Show and search query history",
		Long: `Show the query history window (most recent first, capped at 50
entries). With a search term, entries are filtered by case-insensitive
substring match over the query text.

--archive searches the full SQLite archive instead, which keeps every
query ever run, beyond the 50-entry window.`,
		Example: `  dbdeck history
  dbdeck history "users"
  dbdeck history --archive "alter table"
  dbdeck history rm 6f3a...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := loadContext(cmd, rf)
			if err != nil {
				return err
			}
			a, err := newApp(cc)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			term := ""
			if len(args) > 0 {
				term = args[0]
			}

			if archive {
				records, err := a.history.SearchArchived(cmd.Context(), term, limit)
				if err != nil {
					return err
				}
				if format == "json" {
					return renderJSON(cmd.OutOrStdout(), records)
				}
				t := newHistoryTable(cmd)
				for _, rec := range records {
					t.AppendRow(table.Row{
						rec.EntryID,
						humanize.Time(rec.Timestamp),
						rec.ServiceID,
						outcome(rec.Succeeded),
						truncateQuery(rec.QueryText),
					})
				}
				t.Render()
				return nil
			}

			var entries []history.Entry
			for e := range a.history.Search(term) {
				entries = append(entries, e)
				if len(entries) >= limit {
					break
				}
			}

			if format == "json" {
				return renderJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "history is empty")
				return nil
			}

			t := newHistoryTable(cmd)
			for _, e := range entries {
				t.AppendRow(table.Row{
					e.ID,
					humanize.Time(e.Timestamp),
					e.ServiceID,
					outcome(e.Succeeded),
					truncateQuery(e.Query),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")
	cmd.Flags().BoolVar(&archive, "archive", false, "Search the full archive instead of the window")
	cmd.Flags().IntVar(&limit, "limit", history.Capacity, "Maximum entries to show")

	cmd.AddCommand(newHistoryRmCommand(rf))
	cmd.AddCommand(newHistoryClearCommand(rf))
	return cmd
}

// newHistoryRmCommand removes a single entry by id.
func newHistoryRmCommand(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove one history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := loadContext(cmd, rf)
			if err != nil {
				return err
			}
			a, err := newApp(cc)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			if a.history.Remove(cmd.Context(), args[0]) {
				fmt.Fprintln(cmd.OutOrStdout(), "removed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not found")
			}
			return nil
		},
	}
}

// newHistoryClearCommand drops the history window. The archive is left
// intact.
func newHistoryClearCommand(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the history window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadContext(cmd, rf)
			if err != nil {
				return err
			}
			a, err := newApp(cc)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			a.store.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
}

func newHistoryTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "WHEN", "SERVICE", "RESULT", "QUERY"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "QUERY", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	return t
}

func outcome(succeeded bool) string {
	if succeeded {
		return "ok"
	}
	return "failed"
}

func truncateQuery(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 120 {
		return q[:117] + "..."
	}
	return q
}
