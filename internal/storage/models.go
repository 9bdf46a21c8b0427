package storage

import (
	"time"
)

// QueryRecord is one archived query execution.
type QueryRecord struct {
	ID         int64
	EntryID    string // history entry UUID, stable across store and archive
	Timestamp  time.Time
	ServiceID  string
	QueryText  string
	Succeeded  bool
	DurationMS int64
}
