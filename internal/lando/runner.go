// Package lando shells out to the lando CLI: query execution, backup
// export, credential updates and service discovery. All database access in
// dbdeck flows through here; there is no direct wire protocol to any
// engine.
package lando

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrTimedOut is returned when a command exceeds the caller-supplied
// timeout. The command is never retried: the statement may have executed.
var ErrTimedOut = errors.New("lando command timed out")

// CommandError reports a non-zero exit from the lando CLI, carrying the
// captured stderr text for the caller/UI.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no stderr output"
	}
	return fmt.Sprintf("lando %s: exit %d: %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

// Result is the captured outcome of one lando invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner is the command-execution collaborator. The HTTP layer and CLI
// depend on this interface so tests can substitute a fake.
type Runner interface {
	RunQuery(ctx context.Context, serviceID, query string) (*Result, error)
	ExportBackup(ctx context.Context, serviceID, file string) (*Result, error)
	UpdateCredentials(ctx context.Context, serviceID string, creds map[string]string) (*Result, error)
	Discover(ctx context.Context) ([]byte, error)
	TestConnection(ctx context.Context, serviceID string) error
}

// CLI runs the real lando binary inside a project directory.
type CLI struct {
	bin        string
	projectDir string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewCLI builds a runner. bin defaults to "lando"; timeout <= 0 disables
// the per-command deadline (the caller's context still applies).
func NewCLI(bin, projectDir string, timeout time.Duration, logger *slog.Logger) *CLI {
	if bin == "" {
		bin = "lando"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{bin: bin, projectDir: projectDir, timeout: timeout, logger: logger}
}

// run executes one lando command, capturing stdout/stderr/exit status.
// Cancelling ctx kills the child process.
func (c *CLI) run(ctx context.Context, args ...string) (*Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Dir = c.projectDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	c.logger.Debug("lando command finished",
		"args", strings.Join(args, " "),
		"exit_code", res.ExitCode,
		"duration", res.Duration)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return res, fmt.Errorf("%w: lando %s", ErrTimedOut, strings.Join(args, " "))
	case ctx.Err() != nil:
		return res, ctx.Err()
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, &CommandError{Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		return nil, fmt.Errorf("exec %s: %w", c.bin, err)
	}
	return res, nil
}

// RunQuery executes SQL against a service through `lando db-cli`. It first
// tries the conventional root user; if that invocation exits non-zero it
// falls back once to the service's default credentials. The fallback
// re-sends the same statement with a different auth flag only, and only
// fires when the root attempt was rejected outright.
func (c *CLI) RunQuery(ctx context.Context, serviceID, query string) (*Result, error) {
	res, err := c.run(ctx, "db-cli", "-s", serviceID, "-u", "root", "-e", query)
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return c.run(ctx, "db-cli", "-s", serviceID, "-e", query)
	}
	return res, err
}

// ExportBackup dumps a service's database via `lando db-export`. file may
// be empty, letting lando pick its dated default name.
func (c *CLI) ExportBackup(ctx context.Context, serviceID, file string) (*Result, error) {
	args := []string{"db-export"}
	if file != "" {
		args = append(args, file)
	}
	args = append(args, "--host", serviceID)
	return c.run(ctx, args...)
}

// UpdateCredentials forwards key/value credential settings to lando config.
func (c *CLI) UpdateCredentials(ctx context.Context, serviceID string, creds map[string]string) (*Result, error) {
	args := []string{"config"}
	for k, v := range creds {
		args = append(args, "--set", fmt.Sprintf("%s.creds.%s=%s", serviceID, k, v))
	}
	return c.run(ctx, args...)
}

// Discover returns the raw JSON service list from `lando info`.
func (c *CLI) Discover(ctx context.Context) ([]byte, error) {
	res, err := c.run(ctx, "info", "--format", "json")
	if err != nil {
		return nil, err
	}
	return []byte(res.Stdout), nil
}

// TestConnection pings the database server inside the service container.
func (c *CLI) TestConnection(ctx context.Context, serviceID string) error {
	res, err := c.run(ctx, "ssh", "-s", serviceID, "-c", "mysqladmin -u root ping")
	if err != nil {
		return err
	}
	if !strings.Contains(res.Stdout, "alive") {
		return fmt.Errorf("unexpected ping output: %s", strings.TrimSpace(res.Stdout))
	}
	return nil
}

var _ Runner = (*CLI)(nil)
