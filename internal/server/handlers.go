package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/entl/dbdeck/internal/history"
	"github.com/entl/dbdeck/internal/lando"
	"github.com/entl/dbdeck/internal/paginate"
	"github.com/entl/dbdeck/internal/registry"
)

// handleListServices returns discovered services. ?databases=1 narrows the
// list to known database kinds.
func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	var services []registry.Descriptor
	if r.URL.Query().Get("databases") == "1" {
		services = s.registry.Databases()
	} else {
		services = s.registry.All()
	}
	if services == nil {
		services = []registry.Descriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"services":     services,
		"refreshed_at": s.registry.RefreshedAt(),
	})
}

// handleRefreshServices re-runs discovery and repopulates the registry.
func (s *Server) handleRefreshServices(w http.ResponseWriter, r *http.Request) {
	raw, err := s.runner.Discover(r.Context())
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}

	services, err := s.registry.Refresh(raw)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// queryRequest is the body of POST /api/query.
type queryRequest struct {
	Service  string `json:"service"`
	SQL      string `json:"sql"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// queryResponse carries one page of results plus execution metadata.
type queryResponse struct {
	Page         *paginate.Page `json:"page,omitempty"`
	RawOutput    string         `json:"raw_output,omitempty"`
	RowsAffected *int           `json:"rows_affected,omitempty"`
	HistoryID    string         `json:"history_id"`
	DurationMS   int64          `json:"duration_ms"`
}

// handleQuery runs SQL against a service and returns the requested page of
// results. The query is recorded in history whether or not it succeeds.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var violations []FieldViolation
	if req.Service == "" {
		addViolation(&violations, "service", "service is required")
	}
	if req.SQL == "" {
		addViolation(&violations, "sql", "sql is required")
	}
	if req.Page < 0 {
		addViolation(&violations, "page", "page must not be negative")
	}
	if writeViolations(w, violations) {
		return
	}
	if req.PageSize == 0 {
		req.PageSize = s.defaultPageSize
	}

	svc, ok := s.registry.Get(req.Service)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown service: "+req.Service)
		return
	}
	if !svc.IsDatabase() {
		writeError(w, http.StatusBadRequest, "service is not a database: "+req.Service)
		return
	}

	res, err := s.runner.RunQuery(r.Context(), svc.Name, req.SQL)
	entry := s.history.Record(svc.Name, req.SQL, err == nil, resultDuration(res))
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}

	resp := queryResponse{
		HistoryID:  entry.ID,
		DurationMS: res.Duration.Milliseconds(),
	}

	if table, tabular := lando.ParseTable(res.Stdout); tabular {
		page, perr := paginate.Paginate(table, req.Page, req.PageSize)
		if perr != nil {
			s.writePaginateError(w, perr)
			return
		}
		resp.Page = page
	} else {
		resp.RawOutput = res.Stdout
		if n, ok := lando.RowsAffected(res.Stdout); ok {
			resp.RowsAffected = &n
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleExport triggers a database backup for the service.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "service")
	svc, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown service: "+name)
		return
	}
	if !svc.IsDatabase() {
		writeError(w, http.StatusBadRequest, "service is not a database: "+name)
		return
	}

	res, err := s.runner.ExportBackup(r.Context(), name, r.URL.Query().Get("file"))
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"output":      res.Stdout,
		"duration_ms": res.Duration.Milliseconds(),
	})
}

// handleUpdateCredentials forwards credential key/value pairs to lando.
func (s *Server) handleUpdateCredentials(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "service")
	if _, ok := s.registry.Get(name); !ok {
		writeError(w, http.StatusNotFound, "unknown service: "+name)
		return
	}

	var creds map[string]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(creds) == 0 {
		writeError(w, http.StatusBadRequest, "no credentials provided")
		return
	}

	if _, err := s.runner.UpdateCredentials(r.Context(), name, creds); err != nil {
		s.writeRunnerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleHistory returns history entries, most recent first, optionally
// filtered by ?q= substring. ?archive=1 searches the full SQLite archive
// instead of the bounded window.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	limit := history.Capacity
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	if r.URL.Query().Get("archive") == "1" {
		if limit > 500 {
			limit = 500
		}
		records, err := s.history.SearchArchived(r.Context(), q, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"archive": records})
		return
	}

	entries := make([]history.Entry, 0, limit)
	for e := range s.history.Search(q) {
		entries = append(entries, e)
		if len(entries) >= limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleDeleteHistory removes one entry. Deleting an absent id is not an
// error; the response reports whether anything was removed.
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed := s.history.Remove(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// handleSuggest returns ranked query suggestions for ?service= and ?input=.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("service")

	var violations []FieldViolation
	if name == "" {
		addViolation(&violations, "service", "service is required")
	}
	if writeViolations(w, violations) {
		return
	}

	svc, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown service: "+name)
		return
	}

	suggestions := s.suggest.Suggest(r.Context(), svc, r.URL.Query().Get("input"))
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// writeRunnerError maps collaborator failures onto HTTP statuses: timeouts
// to 504, non-zero exits to 502 with stderr attached, anything else to 500.
func (s *Server) writeRunnerError(w http.ResponseWriter, err error) {
	var cmdErr *lando.CommandError
	switch {
	case errors.Is(err, lando.ErrTimedOut):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &cmdErr):
		writeJSON(w, http.StatusBadGateway, apiError{
			Error:  cmdErr.Error(),
			Stderr: cmdErr.Stderr,
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writePaginateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, paginate.ErrInvalidPageSize), errors.Is(err, paginate.ErrPageOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func resultDuration(res *lando.Result) time.Duration {
	if res != nil {
		return res.Duration
	}
	return 0
}
