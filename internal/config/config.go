// Package config loads dbdeck configuration. Precedence, lowest to
// highest: built-in defaults, dbdeck.yaml, DBDECK_* environment variables,
// command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all runtime settings.
type Config struct {
	ProjectDir string `koanf:"project_dir"`
	LandoBin   string `koanf:"lando_bin"`
	LogLevel   string `koanf:"log_level"`

	History HistoryConfig `koanf:"history"`
	Query   QueryConfig   `koanf:"query"`
	Server  ServerConfig  `koanf:"server"`
}

// HistoryConfig configures the bounded history window file and the SQLite
// archive.
type HistoryConfig struct {
	Path        string `koanf:"path"`
	ArchivePath string `koanf:"archive_path"`
	Archive     bool   `koanf:"archive"`
}

// QueryConfig configures query execution and pagination.
type QueryConfig struct {
	Timeout  time.Duration `koanf:"timeout"`
	PageSize int           `koanf:"page_size"`
}

// ServerConfig configures the HTTP API daemon.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// DataDir is where dbdeck keeps its state, under the user's home.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".dbdeck")
}

// defaults returns the built-in configuration values.
func defaults() map[string]any {
	return map[string]any{
		"project_dir":          ".",
		"lando_bin":            "lando",
		"log_level":            "info",
		"history.path":         filepath.Join(DataDir(), "history.json"),
		"history.archive_path": filepath.Join(DataDir(), "history.db"),
		"history.archive":      true,
		"query.timeout":        "30s",
		"query.page_size":      50,
		"server.addr":          "127.0.0.1:8722",
	}
}

// findConfigFile finds the config file to use.
// Priority: explicit path > dbdeck.yaml > dbdeck.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"dbdeck.yaml", "dbdeck.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load builds the configuration. explicit names a config file (may be
// empty); flags may be nil when loading outside a CLI context.
func Load(explicit string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(explicit); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// DBDECK_QUERY__TIMEOUT=1m -> query.timeout ("__" nests, "_" is literal)
	err := k.Load(env.Provider("DBDECK_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "DBDECK_")), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case flag names to snake_case config keys
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "timeout":
				key = "query.timeout"
			case "page_size":
				key = "query.page_size"
			case "addr":
				key = "server.addr"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Query.PageSize < 10 || c.Query.PageSize > 1000 {
		return fmt.Errorf("query.page_size must be between 10 and 1000, got %d", c.Query.PageSize)
	}
	if c.Query.Timeout < 0 {
		return fmt.Errorf("query.timeout must not be negative")
	}
	return nil
}
