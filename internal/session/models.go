package session

import (
	"io"
	"os"
	"sync"
	"time"
)

// Session represents one interactive database shell running under a PTY.
// The child process is `lando db-cli -s <service>`.
type Session struct {
	ID        string
	Service   string
	Cols      int
	Rows      int
	PTY       *os.File // PTY master file descriptor
	Process   *os.Process
	CreatedAt time.Time
	State     State

	// For output streaming
	outputMu sync.RWMutex
	readers  []io.Writer // subscribers for output

	mu sync.RWMutex
}

// State represents the current state of a session.
type State string

const (
	StateRunning State = "running"
	StateClosed  State = "closed"
	StateExited  State = "exited"
)

// Options configures a new database shell session.
type Options struct {
	Service string   // Lando service to open the db CLI against
	User    string   // Optional: database user passed to lando db-cli -u
	Cols    int      // Terminal columns
	Rows    int      // Terminal rows
	Env     []string // Optional: additional environment variables
}
