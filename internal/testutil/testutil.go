package testutil

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jxwalker/modbrowse/internal/state"
)

// MockHTTPServer serves canned responses or per-path handlers and records every request.
type MockHTTPServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]MockResponse
	handlers  map[string]http.HandlerFunc
	requests  []RecordedRequest
}

// MockResponse represents a canned HTTP response
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// RecordedRequest is the part of a request tests assert on.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// NewMockHTTPServer creates a new mock HTTP server and closes it when the test ends.
func NewMockHTTPServer(t *testing.T) *MockHTTPServer {
	t.Helper()
	ms := &MockHTTPServer{
		responses: make(map[string]MockResponse),
		handlers:  make(map[string]http.HandlerFunc),
	}

	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.mu.Lock()
		ms.requests = append(ms.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		h, hok := ms.handlers[r.URL.Path]
		resp, ok := ms.responses[r.URL.Path]
		ms.mu.Unlock()

		if hok {
			h(w, r)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprintf(w, "No mock response configured for %s", r.URL.Path)
			return
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = fmt.Fprint(w, resp.Body)
	}))
	t.Cleanup(ms.Close)
	return ms
}

// AddResponse adds a canned response for a path.
func (ms *MockHTTPServer) AddResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// AddJSONResponse adds a JSON response for a path.
func (ms *MockHTTPServer) AddJSONResponse(path string, statusCode int, body string) {
	ms.AddResponse(path, MockResponse{
		StatusCode: statusCode,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// Handle routes a path to h. Handlers take precedence over canned responses.
func (ms *MockHTTPServer) Handle(path string, h http.HandlerFunc) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.handlers[path] = h
}

// Requests returns the requests received so far.
func (ms *MockHTTPServer) Requests() []RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RecordedRequest(nil), ms.requests...)
}

// RequestCount returns how many requests hit path.
func (ms *MockHTTPServer) RequestCount(path string) int {
	n := 0
	for _, r := range ms.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// TestDB creates an in-memory SQLite database with the instances schema.
func TestDB(t *testing.T) *state.DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// Every pooled connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	db := &state.DB{SQL: sqlDB}
	if err := db.InitInstancesTable(); err != nil {
		t.Fatalf("failed to initialize test schema: %v", err)
	}
	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

// LoadFixture loads testdata/fixtures/<name>.
func LoadFixture(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join("testdata", "fixtures", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", name, err)
	}
	return string(data)
}

// Ptr returns a pointer to v (useful for optional update fields).
func Ptr[T any](v T) *T {
	return &v
}
