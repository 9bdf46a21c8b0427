package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/entl/dbdeck/internal/registry"
)

// newServicesCommand lists the services discovered in the current project.
func newServicesCommand(rf *rootFlags) *cobra.Command {
	var (
		all    bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "services",
		Short: "List database services in the project",
		Example: `  # Database services only
  dbdeck services

  # Every service, including non-database ones
  dbdeck services --all

  # JSON for scripting
  dbdeck services --format json`,
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

			if err := a.refreshRegistry(cmd.Context()); err != nil {
				return err
			}

			var services []registry.Descriptor
			if all {
				services = a.registry.All()
			} else {
				services = a.registry.Databases()
			}

			if format == "json" {
				return renderJSON(cmd.OutOrStdout(), services)
			}

			if len(services) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no services found")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"NAME", "KIND", "TYPE", "VERSION", "HOST", "PORT", "DATABASE"})
			for _, svc := range services {
				t.AppendRow(table.Row{svc.Name, svc.Kind, svc.Type, svc.Version, svc.Host, svc.Port, svc.Database})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include non-database services")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")
	return cmd
}
