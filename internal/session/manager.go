// Package session manages interactive database shells. Each session runs
// `lando db-cli` for one service under a PTY so line editing, paging and
// prompts behave exactly as in a terminal.
package session

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

// Manager tracks the live PTY sessions.
type Manager struct {
	sessions   map[string]*Session
	mu         sync.RWMutex
	bin        string
	projectDir string
	logger     *slog.Logger
}

// NewManager creates a session manager. bin defaults to "lando".
func NewManager(bin, projectDir string, logger *slog.Logger) *Manager {
	if bin == "" {
		bin = "lando"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		bin:        bin,
		projectDir: projectDir,
		logger:     logger,
	}
}

// Start creates and starts a new database shell session.
func (m *Manager) Start(opts Options) (*Session, error) {
	if opts.Service == "" {
		return nil, fmt.Errorf("service is required")
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}

	sessionID := uuid.New().String()
	session := &Session{
		ID:        sessionID,
		Service:   opts.Service,
		Cols:      opts.Cols,
		Rows:      opts.Rows,
		CreatedAt: time.Now(),
		State:     StateRunning,
		readers:   make([]io.Writer, 0),
	}

	args := []string{"db-cli", "-s", opts.Service}
	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}

	cmd := exec.Command(m.bin, args...)
	cmd.Dir = m.projectDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.Env = append(cmd.Env, opts.Env...)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(opts.Rows),
		Cols: uint16(opts.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	session.PTY = ptmx
	session.Process = cmd.Process

	m.mu.Lock()
	m.sessions[sessionID] = session
	m.mu.Unlock()

	go m.readOutput(session)
	go m.monitorProcess(session, cmd)

	m.logger.Info("db shell started", "session_id", sessionID, "service", opts.Service)
	return session, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return session, nil
}

// Close closes a session and cleans up resources.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session not found: %s", sessionID)
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State == StateClosed {
		return nil // already closed
	}
	session.State = StateClosed

	if session.PTY != nil {
		session.PTY.Close()
	}
	if session.Process != nil {
		session.Process.Kill()
	}
	return nil
}

// CloseAll tears down every live session, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Close(id); err != nil {
			m.logger.Warn("failed to close session", "session_id", id, "error", err)
		}
	}
}

// Resize updates the terminal size for a session.
func (m *Manager) Resize(sessionID string, cols, rows int) error {
	session, err := m.Get(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State != StateRunning {
		return fmt.Errorf("session is not running: %s", sessionID)
	}

	session.Cols = cols
	session.Rows = rows

	if session.PTY != nil {
		return pty.Setsize(session.PTY, &pty.Winsize{
			Rows: uint16(rows),
			Cols: uint16(cols),
		})
	}
	return nil
}

// WriteInput writes input bytes to a session's PTY.
func (m *Manager) WriteInput(sessionID string, data []byte) error {
	session, err := m.Get(sessionID)
	if err != nil {
		return err
	}

	session.mu.RLock()
	defer session.mu.RUnlock()

	if session.State != StateRunning {
		return fmt.Errorf("session is not running: %s", sessionID)
	}
	if session.PTY == nil {
		return fmt.Errorf("session PTY is nil: %s", sessionID)
	}

	_, err = session.PTY.Write(data)
	return err
}

// AddOutputWriter adds a writer to receive session output.
func (m *Manager) AddOutputWriter(sessionID string, writer io.Writer) error {
	session, err := m.Get(sessionID)
	if err != nil {
		return err
	}

	session.outputMu.Lock()
	defer session.outputMu.Unlock()

	session.readers = append(session.readers, writer)
	return nil
}

// readOutput continuously reads from the PTY and broadcasts to subscribers.
func (m *Manager) readOutput(session *Session) {
	buf := make([]byte, 4096)

	for {
		session.mu.RLock()
		if session.State != StateRunning || session.PTY == nil {
			session.mu.RUnlock()
			break
		}
		ptmx := session.PTY
		session.mu.RUnlock()

		n, err := ptmx.Read(buf)
		if err != nil {
			if err != io.EOF {
				m.logger.Debug("pty read ended", "session_id", session.ID, "error", err)
			}
			break
		}

		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			session.outputMu.RLock()
			for _, writer := range session.readers {
				_, _ = writer.Write(data)
			}
			session.outputMu.RUnlock()
		}
	}
}

// monitorProcess marks the session exited when the child terminates and
// drops it from the manager so exited sessions do not accumulate.
func (m *Manager) monitorProcess(session *Session, cmd *exec.Cmd) {
	err := cmd.Wait()

	session.mu.Lock()
	if session.State == StateRunning {
		session.State = StateExited
	}
	session.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, session.ID)
	m.mu.Unlock()

	if err != nil {
		m.logger.Debug("db shell exited", "session_id", session.ID, "error", err)
	} else {
		m.logger.Debug("db shell exited", "session_id", session.ID)
	}
}
