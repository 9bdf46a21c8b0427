// Package cli implements the dbdeck command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/entl/dbdeck/internal/config"
)

type rootFlags struct {
	ConfigFile string
	ProjectDir string
	LandoBin   string
	LogLevel   string
}

// cmdContext carries what every command needs after config resolution.
type cmdContext struct {
	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the CLI. version and build are injected at link time.
func Execute(version, build string) error {
	return NewRootCommand(version, build).Execute()
}

// NewRootCommand builds the dbdeck command tree.
func NewRootCommand(version, build string) *cobra.Command {
	var rf rootFlags

	rootCmd := &cobra.Command{
		Use:           "dbdeck",
		Short:         "Browse and query database services in Lando projects",
		Long: `dbdeck is a developer tool for the databases inside a Lando project:
discover services, run SQL through lando db-cli, page through results,
search query history and export backups.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rf.ConfigFile, "config", "", "Path to config file (default dbdeck.yaml)")
	flags.StringVar(&rf.ProjectDir, "project-dir", "", "Lando project directory")
	flags.StringVar(&rf.LandoBin, "lando-bin", "", "Path to the lando binary")
	flags.StringVar(&rf.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.Duration("timeout", 0, "Per-command timeout for lando invocations")

	rootCmd.AddCommand(newServicesCommand(&rf))
	rootCmd.AddCommand(newQueryCommand(&rf))
	rootCmd.AddCommand(newHistoryCommand(&rf))
	rootCmd.AddCommand(newExportCommand(&rf))
	rootCmd.AddCommand(newShellCommand(&rf))
	rootCmd.AddCommand(newSuggestCommand(&rf))
	rootCmd.AddCommand(newProjectsCommand(&rf))
	rootCmd.AddCommand(newServeCommand(&rf, version, build))
	rootCmd.AddCommand(newVersionCommand(version, build))

	return rootCmd
}

// loadContext resolves configuration and builds the logger for a command
// invocation.
func loadContext(cmd *cobra.Command, rf *rootFlags) (*cmdContext, error) {
	cfg, err := config.Load(rf.ConfigFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if rf.ProjectDir != "" {
		cfg.ProjectDir = rf.ProjectDir
	}
	if rf.LandoBin != "" {
		cfg.LandoBin = rf.LandoBin
	}
	if rf.LogLevel != "" {
		cfg.LogLevel = rf.LogLevel
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return &cmdContext{cfg: cfg, logger: logger}, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
