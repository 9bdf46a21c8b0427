package history

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/entl/dbdeck/internal/storage"
)

// Service couples the bounded store with the SQLite archive. Archive writes
// are async so recording a query never blocks the caller on disk I/O.
type Service struct {
	store    *Store
	db       *storage.DB
	logger   *slog.Logger
	writeCh  chan *writeRequest
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// writeRequest encapsulates a record to be archived.
type writeRequest struct {
	rec      *storage.QueryRecord
	resultCh chan error // optional, for callers who want confirmation
}

// NewService creates a history service over the given store. db may be nil,
// in which case archiving is disabled and only the bounded window is kept.
// A background goroutine drains archive writes until Close.
func NewService(store *Store, db *storage.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		store:   store,
		db:      db,
		logger:  logger,
		writeCh: make(chan *writeRequest, 100), // buffered to handle bursts
		stopCh:  make(chan struct{}),
	}

	if db != nil {
		svc.wg.Add(1)
		go svc.writeWorker()
	}

	return svc
}

// writeWorker processes archive writes in the background.
func (s *Service) writeWorker() {
	defer s.wg.Done()

	for {
		select {
		case req := <-s.writeCh:
			s.archive(req)

		case <-s.stopCh:
			// Drain remaining writes before exiting
			for {
				select {
				case req := <-s.writeCh:
					s.archive(req)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) archive(req *writeRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := s.db.InsertQuery(ctx, req.rec)
	cancel()

	if err != nil {
		s.logger.Error("failed to archive query", "entry_id", req.rec.EntryID, "error", err)
	}

	if req.resultCh != nil {
		req.resultCh <- err
		close(req.resultCh)
	}
}

// Record appends the query to the bounded store and enqueues it for
// archival. Failed queries are recorded too, with succeeded=false, so the
// user can re-run them from history.
func (s *Service) Record(serviceID, query string, succeeded bool, duration time.Duration) Entry {
	entry := s.store.Record(serviceID, query, succeeded)
	s.enqueue(entry, duration, nil)
	return entry
}

// RecordSync is Record but waits for the archive write to land. Use
// sparingly; mainly for short-lived CLI invocations and tests.
func (s *Service) RecordSync(serviceID, query string, succeeded bool, duration time.Duration) (Entry, error) {
	entry := s.store.Record(serviceID, query, succeeded)
	if s.db == nil {
		return entry, nil
	}
	resultCh := make(chan error, 1)
	if !s.enqueue(entry, duration, resultCh) {
		return entry, nil // buffer full, write dropped
	}
	return entry, <-resultCh
}

func (s *Service) enqueue(entry Entry, duration time.Duration, resultCh chan error) bool {
	if s.db == nil {
		return false
	}
	req := &writeRequest{
		rec: &storage.QueryRecord{
			EntryID:    entry.ID,
			Timestamp:  entry.Timestamp,
			ServiceID:  entry.ServiceID,
			QueryText:  entry.Query,
			Succeeded:  entry.Succeeded,
			DurationMS: duration.Milliseconds(),
		},
		resultCh: resultCh,
	}

	select {
	case s.writeCh <- req:
		return true
	default:
		s.logger.Warn("archive buffer full, dropping query", "query", entry.Query)
		return false
	}
}

// Search proxies the bounded store's lazy search sequence.
func (s *Service) Search(substr string) iter.Seq[Entry] {
	return s.store.Search(substr)
}

// Remove deletes an entry from the window and, when archiving is enabled,
// from the archive as well. Returns true if the entry was present in the
// window.
func (s *Service) Remove(ctx context.Context, id string) bool {
	removed := s.store.Remove(id)
	if s.db != nil {
		if _, err := s.db.DeleteQuery(ctx, id); err != nil {
			s.logger.Error("failed to delete archived query", "entry_id", id, "error", err)
		}
	}
	return removed
}

// Store exposes the underlying bounded store.
func (s *Service) Store() *Store {
	return s.store
}

// RecentArchived retrieves the most recent archived queries.
func (s *Service) RecentArchived(ctx context.Context, limit int) ([]*storage.QueryRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.RecentQueries(ctx, limit)
}

// SearchArchived searches the full archive, beyond the bounded window.
func (s *Service) SearchArchived(ctx context.Context, pattern string, limit int) ([]*storage.QueryRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.SearchQueries(ctx, pattern, limit)
}

// Close shuts down the archive worker, draining pending writes.
func (s *Service) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
	})
	return nil
}
