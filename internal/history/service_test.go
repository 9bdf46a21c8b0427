package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entl/dbdeck/internal/storage"
	"github.com/entl/dbdeck/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *storage.DB) {
	t.Helper()
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(NewStore(), db, testutil.NewTestLogger(t))
	t.Cleanup(func() { svc.Close() })
	return svc, db
}

func TestRecordSyncArchives(t *testing.T) {
	svc, db := newTestService(t)

	entry, err := svc.RecordSync("database", "SELECT 1", true, 42*time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 1, svc.Store().Len())

	records, err := db.RecentQueries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entry.ID, records[0].EntryID)
	assert.Equal(t, "SELECT 1", records[0].QueryText)
	assert.True(t, records[0].Succeeded)
	assert.Equal(t, int64(42), records[0].DurationMS)
}

func TestRecordFailedQuery(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.RecordSync("database", "SELEC typo", false, 0)
	require.NoError(t, err)

	records, err := db.RecentQueries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Succeeded)
}

func TestCloseDrainsPendingWrites(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(NewStore(), db, testutil.NewTestLogger(t))
	for i := 0; i < 5; i++ {
		svc.Record("database", "SELECT 1", true, time.Millisecond)
	}
	require.NoError(t, svc.Close())

	records, err := db.RecentQueries(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestRemoveDeletesFromArchive(t *testing.T) {
	svc, db := newTestService(t)

	entry, err := svc.RecordSync("database", "SELECT 1", true, 0)
	require.NoError(t, err)

	assert.True(t, svc.Remove(context.Background(), entry.ID))
	assert.Equal(t, 0, svc.Store().Len())

	records, err := db.RecentQueries(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Second removal reports absence without error.
	assert.False(t, svc.Remove(context.Background(), entry.ID))
}

func TestServiceWithoutArchive(t *testing.T) {
	svc := NewService(NewStore(), nil, testutil.NewTestLogger(t))
	defer svc.Close()

	entry, err := svc.RecordSync("database", "SELECT 1", true, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)

	records, err := svc.RecentArchived(context.Background(), 10)
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestSearchArchived(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RecordSync("database", "SELECT * FROM users", true, 0)
	require.NoError(t, err)
	_, err = svc.RecordSync("database", "SHOW TABLES", true, 0)
	require.NoError(t, err)

	records, err := svc.SearchArchived(context.Background(), "select", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "SELECT * FROM users", records[0].QueryText)
}
