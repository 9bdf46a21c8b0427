package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/entl/dbdeck/internal/lando"
	"github.com/entl/dbdeck/internal/paginate"
)

// newQueryCommand runs SQL against a service via lando db-cli.
func newQueryCommand(rf *rootFlags) *cobra.Command {
	var (
		page     int
		pageSize int
		format   string
		input    string
	)

	cmd := &cobra.Command{
		Use:   "query <service> [SQL]",
		Short: "Run SQL against a database service",
		Long: `Run SQL against a database service through lando db-cli.

Tabular output is paginated; use --page to walk through large results.
The query is recorded in history whether it succeeds or fails, so failed
statements can be retried from history.`,
		Example: `  dbdeck query database "SELECT * FROM users LIMIT 20"

  # Second page, 100 rows per page
  dbdeck query database "SELECT * FROM log" --page 1 --page-size 100

  # SQL from a file or stdin
  dbdeck query database --input report.sql
  echo "SHOW TABLES;" | dbdeck query database`,
		Args: cobra.RangeArgs(1, 2),
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

			sql, err := resolveSQL(cmd, args, input)
			if err != nil {
				return err
			}

			if err := a.refreshRegistry(cmd.Context()); err != nil {
				return err
			}
			svc, ok := a.registry.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown service %q (try 'dbdeck services --all')", args[0])
			}
			if !svc.IsDatabase() {
				return fmt.Errorf("service %q is not a database (kind=%s)", svc.Name, svc.Kind)
			}

			if pageSize == 0 {
				pageSize = a.cfg.Query.PageSize
			}

			start := time.Now()
			res, runErr := a.runner.RunQuery(cmd.Context(), svc.Name, sql)
			a.history.Record(svc.Name, sql, runErr == nil, time.Since(start))
			if runErr != nil {
				if errors.Is(runErr, lando.ErrTimedOut) {
					return fmt.Errorf("query timed out after %s (raise --timeout to wait longer)", a.cfg.Query.Timeout)
				}
				return runErr
			}

			out := cmd.OutOrStdout()
			table, tabular := lando.ParseTable(res.Stdout)
			if !tabular {
				if n, ok := lando.RowsAffected(res.Stdout); ok {
					fmt.Fprintf(out, "%d row(s) affected\n", n)
					return nil
				}
				_, _ = io.WriteString(out, res.Stdout)
				return nil
			}

			pg, err := paginate.Paginate(table, page, pageSize)
			if err != nil {
				return err
			}
			return renderPage(out, pg, format)
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "Page index (0-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0,
		fmt.Sprintf("Rows per page, %d-%d (default from config)", paginate.MinPageSize, paginate.MaxPageSize))
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, csv")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Read SQL from file")
	return cmd
}

// resolveSQL picks the SQL source: positional argument, --input file, or
// piped stdin.
func resolveSQL(cmd *cobra.Command, args []string, input string) (string, error) {
	switch {
	case len(args) > 1:
		return args[1], nil
	case input != "":
		content, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(content), nil
	default:
		stdin, ok := cmd.InOrStdin().(*os.File)
		if ok && isTerminalFile(stdin) {
			return "", fmt.Errorf("no SQL given: pass it as an argument, via --input, or on stdin")
		}
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		sql := strings.TrimSpace(string(content))
		if sql == "" {
			return "", fmt.Errorf("no SQL given: pass it as an argument, via --input, or on stdin")
		}
		return sql, nil
	}
}

func isTerminalFile(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
