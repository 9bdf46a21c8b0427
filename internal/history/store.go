// Package history keeps a bounded record of executed queries.
//
// The Store is the process-wide window the UI works against: at most
// Capacity entries, oldest evicted first. Service wraps it with an async
// SQLite archive so the full history survives restarts and eviction.
package history

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Capacity is the fixed upper bound of the store. Enforced on every
// insertion, never on read.
const Capacity = 50

// Entry records one executed query and its outcome. Entries are never
// mutated after creation.
type Entry struct {
	ID        string    `json:"id"`
	ServiceID string    `json:"service_id"`
	Query     string    `json:"query"`
	Succeeded bool      `json:"succeeded"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is an ordered, bounded collection of history entries. Insertion
// order defines recency; eviction is strict FIFO (re-running a query does
// not refresh its position). All mutations are serialized by the mutex.
type Store struct {
	mu      sync.RWMutex
	entries []Entry // oldest first
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Record appends a new entry, evicting the oldest one first if the store
// is at capacity. Duplicated query text always appends a fresh entry.
func (s *Store) Record(serviceID, query string, succeeded bool) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		ServiceID: serviceID,
		Query:     strings.TrimSpace(query),
		Succeeded: succeeded,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	if len(s.entries) >= Capacity {
		s.entries = s.entries[len(s.entries)-Capacity+1:]
	}
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	return e
}

// Search returns a restartable lazy sequence of entries whose query text
// contains substr case-insensitively, most recent first. An empty substr
// yields the full store. Iteration works over a snapshot and never mutates
// the store; the sequence may be re-invoked any number of times.
func (s *Store) Search(substr string) iter.Seq[Entry] {
	needle := strings.ToLower(substr)
	return func(yield func(Entry) bool) {
		s.mu.RLock()
		snapshot := make([]Entry, len(s.entries))
		copy(snapshot, s.entries)
		s.mu.RUnlock()

		for i := len(snapshot) - 1; i >= 0; i-- {
			e := snapshot[i]
			if needle != "" && !strings.Contains(strings.ToLower(e.Query), needle) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Remove deletes the entry with the given id. It returns false when the id
// is not present, which is not an error; removing twice is harmless.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the current number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Save writes the store to path as a JSON array ordered most-recent-last,
// which is also the insertion order. The parent directory is created if
// needed.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Load replaces the store contents from a file written by Save. A missing
// file leaves the store empty. Files holding more than Capacity entries
// (written by older builds) are truncated to the newest Capacity.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	if len(entries) > Capacity {
		entries = entries[len(entries)-Capacity:]
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}
