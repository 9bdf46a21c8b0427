package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s *Store, substr string) []Entry {
	t.Helper()
	var out []Entry
	for e := range s.Search(substr) {
		out = append(out, e)
	}
	return out
}

func TestRecordEvictsOldestFirst(t *testing.T) {
	s := NewStore()

	for i := 1; i <= Capacity+1; i++ {
		s.Record("db", fmt.Sprintf("SELECT %d", i), true)
	}

	assert.Equal(t, Capacity, s.Len())

	entries := collect(t, s, "")
	require.Len(t, entries, Capacity)
	// Most recent first: the newest is SELECT 51, the oldest surviving is
	// SELECT 2 because SELECT 1 was evicted.
	assert.Equal(t, fmt.Sprintf("SELECT %d", Capacity+1), entries[0].Query)
	assert.Equal(t, "SELECT 2", entries[len(entries)-1].Query)
}

func TestRecordDuplicateAlwaysAppends(t *testing.T) {
	s := NewStore()
	a := s.Record("db", "SELECT 1", true)
	b := s.Record("db", "SELECT 1", true)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, s.Len())
}

func TestRecordTrimsWhitespace(t *testing.T) {
	s := NewStore()
	e := s.Record("db", "  SELECT 1  \n", true)
	assert.Equal(t, "SELECT 1", e.Query)
}

func TestSearchCaseInsensitive(t *testing.T) {
	s := NewStore()
	s.Record("db", "SELECT * FROM users", true)
	s.Record("db", "show tables", true)
	s.Record("db", "DELETE FROM sessions", false)

	entries := collect(t, s, "select")
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT * FROM users", entries[0].Query)

	entries = collect(t, s, "FROM")
	assert.Len(t, entries, 2)

	assert.Empty(t, collect(t, s, "truncate"))
}

func TestSearchMostRecentFirst(t *testing.T) {
	s := NewStore()
	s.Record("db", "SELECT 1", true)
	s.Record("db", "SELECT 2", true)
	s.Record("db", "SELECT 3", true)

	entries := collect(t, s, "SELECT")
	require.Len(t, entries, 3)
	assert.Equal(t, "SELECT 3", entries[0].Query)
	assert.Equal(t, "SELECT 1", entries[2].Query)
}

func TestSearchRestartable(t *testing.T) {
	s := NewStore()
	s.Record("db", "SELECT 1", true)
	s.Record("db", "SELECT 2", true)

	seq := s.Search("SELECT")

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, first, second)

	// Early break must not poison later iterations.
	for range seq {
		break
	}
	third := 0
	for range seq {
		third++
	}
	assert.Equal(t, first, third)
}

func TestSearchSnapshotIgnoresConcurrentWrites(t *testing.T) {
	s := NewStore()
	s.Record("db", "SELECT 1", true)

	seq := s.Search("")
	count := 0
	for range seq {
		if count == 0 {
			s.Record("db", "SELECT 2", true)
		}
		count++
	}
	assert.Equal(t, 1, count)

	// A fresh iteration sees the new entry.
	count = 0
	for range seq {
		count++
	}
	assert.Equal(t, 2, count)
}

func TestRemove(t *testing.T) {
	s := NewStore()
	e := s.Record("db", "SELECT 1", true)
	s.Record("db", "SELECT 2", true)

	assert.True(t, s.Remove(e.ID))
	assert.Equal(t, 1, s.Len())

	// Removing twice is harmless.
	assert.False(t, s.Remove(e.ID))
	assert.False(t, s.Remove("no-such-id"))
	assert.Equal(t, 1, s.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.json")

	s := NewStore()
	s.Record("db", "SELECT 1", true)
	s.Record("db", "SELECT 2", false)
	require.NoError(t, s.Save(path))

	loaded := NewStore()
	require.NoError(t, loaded.Load(path))

	want := collect(t, s, "")
	got := collect(t, loaded, "")
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Query, got[i].Query)
		assert.Equal(t, want[i].Succeeded, got[i].Succeeded)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "absent.json")))
	assert.Equal(t, 0, s.Len())
}

func TestLoadTruncatesOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	// Hand-build a file holding more entries than the store may keep, as an
	// older build without the insert-time bound could have written.
	var entries []Entry
	for i := 0; i < Capacity+10; i++ {
		entries = append(entries, Entry{
			ID:        fmt.Sprintf("id-%d", i),
			ServiceID: "db",
			Query:     fmt.Sprintf("SELECT %d", i),
			Succeeded: true,
			Timestamp: time.Now().UTC(),
		})
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded := NewStore()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, Capacity, loaded.Len())

	// The newest entries survive the truncation.
	got := collect(t, loaded, "")
	assert.Equal(t, fmt.Sprintf("id-%d", Capacity+9), got[0].ID)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := NewStore()
	assert.Error(t, s.Load(path))
}
