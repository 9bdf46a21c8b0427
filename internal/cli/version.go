package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCommand prints the compiled-in version and build strings.
func newVersionCommand(version, build string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dbdeck %s (build %s)\n", version, build)
		},
	}
}
