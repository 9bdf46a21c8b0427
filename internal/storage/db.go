// Package storage persists the full query archive in SQLite. Unlike the
// bounded in-memory history window, the archive is unbounded and survives
// restarts.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection for archive operations.
type DB struct {
	conn *sql.DB
}

// NewDB opens/creates a SQLite database at the given path and initializes
// the schema. Pass ":memory:" for an in-memory database (useful for tests).
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps archive writes from blocking readers
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_id TEXT NOT NULL UNIQUE,
		ts INTEGER NOT NULL,
		service_id TEXT NOT NULL,
		query_text TEXT NOT NULL,
		succeeded INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_queries_ts ON queries(ts DESC);
	CREATE INDEX IF NOT EXISTS idx_queries_service ON queries(service_id);
	CREATE INDEX IF NOT EXISTS idx_queries_text ON queries(query_text);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// InsertQuery archives a query record and fills in its row id.
func (db *DB) InsertQuery(ctx context.Context, rec *QueryRecord) error {
	query := `
		INSERT INTO queries (entry_id, ts, service_id, query_text, succeeded, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.ExecContext(ctx, query,
		rec.EntryID,
		rec.Timestamp.Unix(),
		rec.ServiceID,
		rec.QueryText,
		boolToInt(rec.Succeeded),
		rec.DurationMS,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	return nil
}

// RecentQueries retrieves the N most recent archived queries.
func (db *DB) RecentQueries(ctx context.Context, limit int) ([]*QueryRecord, error) {
	query := `
		SELECT id, entry_id, ts, service_id, query_text, succeeded, duration_ms
		FROM queries
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent queries: %w", err)
	}
	defer rows.Close()

	return db.scanQueries(rows)
}

// SearchQueries finds archived queries whose text contains the pattern,
// case-insensitively, most recent first.
func (db *DB) SearchQueries(ctx context.Context, pattern string, limit int) ([]*QueryRecord, error) {
	query := `
		SELECT id, entry_id, ts, service_id, query_text, succeeded, duration_ms
		FROM queries
		WHERE query_text LIKE ? COLLATE NOCASE
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, "%"+pattern+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search queries: %w", err)
	}
	defer rows.Close()

	return db.scanQueries(rows)
}

// QueriesByService retrieves archived queries for a specific service.
func (db *DB) QueriesByService(ctx context.Context, serviceID string, limit int) ([]*QueryRecord, error) {
	query := `
		SELECT id, entry_id, ts, service_id, query_text, succeeded, duration_ms
		FROM queries
		WHERE service_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, serviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query by service: %w", err)
	}
	defer rows.Close()

	return db.scanQueries(rows)
}

// DeleteQuery removes an archived record by its history entry id. Returns
// true when a row was deleted.
func (db *DB) DeleteQuery(ctx context.Context, entryID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM queries WHERE entry_id = ?`, entryID)
	if err != nil {
		return false, fmt.Errorf("failed to delete query: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// scanQueries is a helper that scans rows into QueryRecord structs.
func (db *DB) scanQueries(rows *sql.Rows) ([]*QueryRecord, error) {
	var records []*QueryRecord

	for rows.Next() {
		var rec QueryRecord
		var tsUnix int64
		var succeeded int

		err := rows.Scan(
			&rec.ID,
			&rec.EntryID,
			&tsUnix,
			&rec.ServiceID,
			&rec.QueryText,
			&succeeded,
			&rec.DurationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query row: %w", err)
		}

		rec.Timestamp = time.Unix(tsUnix, 0)
		rec.Succeeded = succeeded != 0

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query rows: %w", err)
	}

	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
