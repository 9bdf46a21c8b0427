package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSuggestCommand prints ranked query suggestions for a service.
func newSuggestCommand(rf *rootFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "suggest <service> [prefix]",
		Short: "Suggest queries from history and templates",
		Example: `  dbdeck suggest database
  dbdeck suggest database "SELECT"`,
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

			if err := a.refreshRegistry(cmd.Context()); err != nil {
				return err
			}
			svc, ok := a.registry.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown service %q", args[0])
			}

			input := ""
			if len(args) > 1 {
				input = args[1]
			}

			suggestions := a.suggest.Suggest(cmd.Context(), svc, input)
			if format == "json" {
				return renderJSON(cmd.OutOrStdout(), suggestions)
			}
			for _, s := range suggestions {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", s.Source, s.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
