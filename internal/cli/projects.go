package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/entl/dbdeck/internal/lando"
)

// newProjectsCommand scans a directory tree for Lando projects.
func newProjectsCommand(rf *rootFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "projects [dir]",
		Short: "Find Lando projects under a directory",
		Long: `Scan a directory tree (up to three levels deep) for .lando.yml files
and list the projects found. Defaults to the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			projects, err := lando.ScanProjects(root)
			if err != nil {
				return err
			}

			if format == "json" {
				return renderJSON(cmd.OutOrStdout(), projects)
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no Lando projects found")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"NAME", "RECIPE", "DIR"})
			for _, p := range projects {
				t.AppendRow(table.Row{p.Name, p.Recipe, p.Dir})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")
	return cmd
}
