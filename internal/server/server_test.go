package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entl/dbdeck/internal/history"
	"github.com/entl/dbdeck/internal/lando"
	"github.com/entl/dbdeck/internal/paginate"
	"github.com/entl/dbdeck/internal/registry"
	"github.com/entl/dbdeck/internal/suggest"
	"github.com/entl/dbdeck/internal/testutil"
)

// fakeRunner scripts collaborator behavior per test.
type fakeRunner struct {
	queryOut    string
	queryErr    error
	discoverOut []byte
	discoverErr error
	exportErr   error
	credsGot    map[string]string
}

func (f *fakeRunner) RunQuery(_ context.Context, _, _ string) (*lando.Result, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &lando.Result{Stdout: f.queryOut, Duration: 5 * time.Millisecond}, nil
}

func (f *fakeRunner) ExportBackup(_ context.Context, _, _ string) (*lando.Result, error) {
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return &lando.Result{Stdout: "exported"}, nil
}

func (f *fakeRunner) UpdateCredentials(_ context.Context, _ string, creds map[string]string) (*lando.Result, error) {
	f.credsGot = creds
	return &lando.Result{}, nil
}

func (f *fakeRunner) Discover(context.Context) ([]byte, error) {
	return f.discoverOut, f.discoverErr
}

func (f *fakeRunner) TestConnection(context.Context, string) error { return nil }

func newTestServer(t *testing.T, runner *fakeRunner) (*Server, *registry.Registry, *history.Service) {
	t.Helper()

	reg := registry.New()
	_, err := reg.Refresh([]byte(`[
		{"service": "database", "type": "mysql"},
		{"service": "appserver", "type": "php"}
	]`))
	require.NoError(t, err)

	store := history.NewStore()
	hist := history.NewService(store, nil, testutil.NewTestLogger(t))
	t.Cleanup(func() { hist.Close() })

	sug := suggest.NewService(testutil.NewTestLogger(t),
		suggest.NewHistoryProvider(store),
		suggest.NewTemplateProvider())

	return New(reg, hist, sug, runner, 50, "test", "none", testutil.NewTestLogger(t)), reg, hist
}

func doRequest(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestPing(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeRunner{})
	rec := doRequest(t, s, http.MethodGet, "/api/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")
}

func TestVersion(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeRunner{})
	rec := doRequest(t, s, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "test", body["version"])
}

func TestListServices(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeRunner{})

	rec := doRequest(t, s, http.MethodGet, "/api/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Services []registry.Descriptor `json:"services"`
	}
	decodeBody(t, rec, &body)
	assert.Len(t, body.Services, 2)

	rec = doRequest(t, s, http.MethodGet, "/api/services?databases=1", nil)
	decodeBody(t, rec, &body)
	require.Len(t, body.Services, 1)
	assert.Equal(t, "database", body.Services[0].Name)
}

func TestRefreshServices(t *testing.T) {
	runner := &fakeRunner{discoverOut: []byte(`[{"service": "pg", "type": "postgres"}]`)}
	s, reg, _ := newTestServer(t, runner)

	rec := doRequest(t, s, http.MethodPost, "/api/services/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	dbs := reg.Databases()
	require.Len(t, dbs, 1)
	assert.Equal(t, registry.KindPostgres, dbs[0].Kind)
}

func TestRefreshServicesMalformed(t *testing.T) {
	runner := &fakeRunner{discoverOut: []byte(`{garbage`)}
	s, reg, _ := newTestServer(t, runner)

	rec := doRequest(t, s, http.MethodPost, "/api/services/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// Previous registry contents survive.
	assert.Len(t, reg.All(), 2)
}

func TestQueryTabular(t *testing.T) {
	runner := &fakeRunner{queryOut: "id\tname\n1\talice\n2\tbob\n"}
	s, _, hist := newTestServer(t, runner)

	rec := doRequest(t, s, http.MethodPost, "/api/query", queryRequest{
		Service: "database", SQL: "SELECT * FROM users", Page: 0, PageSize: 10,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp queryResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Page)
	assert.Equal(t, []string{"id", "name"}, resp.Page.Columns)
	assert.Len(t, resp.Page.Rows, 2)
	assert.Equal(t, 2, resp.Page.Total)
	assert.NotEmpty(t, resp.HistoryID)

	// The query landed in history as a success.
	assert.Equal(t, 1, hist.Store().Len())
	for e := range hist.Search("") {
		assert.True(t, e.Succeeded)
	}
}

func TestQueryNonTabular(t *testing.T) {
	runner := &fakeRunner{queryOut: "Query OK, 3 rows affected\n"}
	s, _, _ := newTestServer(t, runner)

	rec := doRequest(t, s, http.MethodPost, "/api/query", queryRequest{
		Service: "database", SQL: "DELETE FROM sessions",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp queryResponse
	decodeBody(t, rec, &resp)
	assert.Nil(t, resp.Page)
	assert.Contains(t, resp.RawOutput, "Query OK")
	require.NotNil(t, resp.RowsAffected)
	assert.Equal(t, 3, *resp.RowsAffected)
}

func TestQueryValidation(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeRunner{})

	rec := doRequest(t, s, http.MethodPost, "/api/query", queryRequest{Page: -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body apiError
	decodeBody(t, rec, &body)
	fields := make([]string, 0, len(body.Violations))
	for _, v := range body.Violations {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"service", "sql", "page"}, fields)
}

func TestQueryUnknownService(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeRunner{})

	rec := doRequest(t, s, http.MethodPost, "/api/query", queryRequest{
		Service: "nope", SQL: "SELECT 1",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryInvalidPageSize(t *testing.T) {
	runner := &fakeRunner{queryOut: "id\tname\n1\talice\n"}
	s, _, _ := newTestServer(t, runner)

	rec := doRequest(t, s, http.MethodPost, "/api/query", queryRequest{
		Service: "database", SQL: "SELECT 1", PageSize: paginate.MaxPageSize + 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "page size")
}

func TestQueryHugePageIndex(t *testing.T) {
	runner := &fakeRunner{queryOut: "id\tname\n1\talice\n"}
	s, _, _ := newTestServer(t, runner)

	rec := doRequest(t, s, http.MethodPost, "/api/query", queryRequest{
		Service: "database", SQL: "SELECT 1", Page: math.MaxInt, PageSize: 10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "page index")
}

func TestQueryNonDatabaseService(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeRunner{})

	rec := doRequest(t, s, http.MethodPost, "/api/query", queryRequest{
		Service: "appserver", SQL: "SELECT 1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not a database")
}

func TestQueryTimeout(t *testing.T) {
	runner := &fakeRunner{queryErr: fmt.Errorf("%w: lando db-cli", lando.ErrTimedOut)}
	s, _, hist := newTestServer(t, runner)

	rec := doRequest(t, s, http.MethodPost, "/api/query", queryRequest{
		Service: "database", SQL: "SELECT SLEEP(60)",
	})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	// Timed-out queries are still recorded, as failures.
	require.Equal(t, 1, hist.Store().Len())
	for e := range hist.Search("") {
		assert.False(t, e.Succeeded)
	}
}

func TestQueryCommandError(t *testing.T) {
	runner := &fakeRunner{queryErr: &lando.CommandError{
		Args: []string{"db-cli"}, ExitCode: 1, Stderr: "syntax error near SELEC",
	}}
	s, _, _ := newTestServer(t, runner)

	rec := doRequest(t, s, http.MethodPost, "/api/query", queryRequest{
		Service: "database", SQL: "SELEC 1",
	})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body apiError
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Stderr, "syntax error")
}

func TestExport(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeRunner{})

	rec := doRequest(t, s, http.MethodPost, "/api/export/database?file=dump.sql", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/export/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/export/appserver", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateCredentials(t *testing.T) {
	runner := &fakeRunner{}
	s, _, _ := newTestServer(t, runner)

	rec := doRequest(t, s, http.MethodPut, "/api/services/database/credentials",
		map[string]string{"password": "hunter2"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hunter2", runner.credsGot["password"])

	rec = doRequest(t, s, http.MethodPut, "/api/services/database/credentials",
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	s, _, hist := newTestServer(t, &fakeRunner{})
	hist.Record("database", "SELECT * FROM users", true, 0)
	hist.Record("database", "SHOW TABLES", true, 0)

	rec := doRequest(t, s, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Entries []history.Entry `json:"entries"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Entries, 2)
	assert.Equal(t, "SHOW TABLES", body.Entries[0].Query)

	rec = doRequest(t, s, http.MethodGet, "/api/history?q=select", nil)
	decodeBody(t, rec, &body)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "SELECT * FROM users", body.Entries[0].Query)

	rec = doRequest(t, s, http.MethodGet, "/api/history?limit=1", nil)
	decodeBody(t, rec, &body)
	assert.Len(t, body.Entries, 1)

	rec = doRequest(t, s, http.MethodGet, "/api/history?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteHistory(t *testing.T) {
	s, _, hist := newTestServer(t, &fakeRunner{})
	entry := hist.Record("database", "SELECT 1", true, 0)

	rec := doRequest(t, s, http.MethodDelete, "/api/history/"+entry.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	decodeBody(t, rec, &body)
	assert.True(t, body["removed"])

	// Deleting an absent id still answers 200.
	rec = doRequest(t, s, http.MethodDelete, "/api/history/"+entry.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &body)
	assert.False(t, body["removed"])
}

func TestSuggestEndpoint(t *testing.T) {
	s, _, hist := newTestServer(t, &fakeRunner{})
	hist.Record("database", "SELECT * FROM users", true, 0)

	rec := doRequest(t, s, http.MethodGet, "/api/suggest?service=database&input=SELECT", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Suggestions []suggest.Suggestion `json:"suggestions"`
	}
	decodeBody(t, rec, &body)
	require.NotEmpty(t, body.Suggestions)
	assert.Equal(t, "SELECT * FROM users", body.Suggestions[0].Text)

	rec = doRequest(t, s, http.MethodGet, "/api/suggest", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/suggest?service=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
