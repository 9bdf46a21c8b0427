package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// newExportCommand dumps a database backup via lando db-export.
func newExportCommand(rf *rootFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "export <service>",
		Short: "Export a database backup",
		Long: `Export a database backup through lando db-export. Without --file,
lando picks a dated file name in the project directory.`,
		Example: `  dbdeck export database
  dbdeck export database --file backup.sql.gz`,
		Args: cobra.ExactArgs(1),
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

			if err := a.refreshRegistry(cmd.Context()); err != nil {
				return err
			}
			svc, ok := a.registry.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown service %q", args[0])
			}
			if !svc.IsDatabase() {
				return fmt.Errorf("service %q is not a database (kind=%s)", svc.Name, svc.Kind)
			}

			res, err := a.runner.ExportBackup(cmd.Context(), svc.Name, file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if trimmed := strings.TrimSpace(res.Stdout); trimmed != "" {
				fmt.Fprintln(out, trimmed)
			}
			if file != "" {
				if fi, err := os.Stat(file); err == nil {
					fmt.Fprintf(out, "wrote %s (%s)\n", file, humanize.Bytes(uint64(fi.Size())))
					return nil
				}
			}
			fmt.Fprintf(out, "export finished in %s\n", res.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Destination file for the dump")
	return cmd
}
