package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/entl/dbdeck/internal/session"
)

// newShellCommand opens an interactive database CLI for a service.
func newShellCommand(rf *rootFlags) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "shell <service>",
		Short: "Open an interactive database shell",
		Long: `Open the service's native database CLI (mysql, psql, ...) under a
PTY, wired to the current terminal. Exit the database CLI to return.`,
		Example: `  dbdeck shell database
  dbdeck shell database --user root`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := loadContext(cmd, rf)
			if err != nil {
				return err
			}

			stdin := int(os.Stdin.Fd())
			if !term.IsTerminal(stdin) {
				return fmt.Errorf("shell requires an interactive terminal")
			}

			cols, rows, err := term.GetSize(stdin)
			if err != nil {
				cols, rows = 80, 24
			}

			mgr := session.NewManager(cc.cfg.LandoBin, cc.cfg.ProjectDir, cc.logger)
			sess, err := mgr.Start(session.Options{
				Service: args[0],
				User:    user,
				Cols:    cols,
				Rows:    rows,
			})
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			// Raw mode: keystrokes (including ctrl sequences) go straight
			// to the database CLI.
			oldState, err := term.MakeRaw(stdin)
			if err != nil {
				return fmt.Errorf("failed to set raw mode: %w", err)
			}
			defer func() { _ = term.Restore(stdin, oldState) }()

			if err := mgr.AddOutputWriter(sess.ID, os.Stdout); err != nil {
				return err
			}

			// Forward stdin until the child closes its PTY.
			buf := make([]byte, 1024)
			for {
				n, rerr := os.Stdin.Read(buf)
				if n > 0 {
					if werr := mgr.WriteInput(sess.ID, buf[:n]); werr != nil {
						break // session ended
					}
				}
				if rerr != nil {
					if rerr != io.EOF {
						return rerr
					}
					break
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Database user for lando db-cli")
	return cmd
}
