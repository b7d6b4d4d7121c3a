package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// JSONUnmarshal unmarshals JSON for testing
func JSONUnmarshal(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}
}

// Backend is a fake answering backend. It records every request body and
// replies with Status and Body.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	Status   int
	Body     string
	requests [][]byte
	paths    []string
}

// NewBackend starts a fake backend answering with status and body
func NewBackend(t *testing.T, status int, body string) *Backend {
	t.Helper()
	b := &Backend{Status: status, Body: body}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.requests = append(b.requests, data)
	b.paths = append(b.paths, r.URL.Path)
	status, body := b.Status, b.Body
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// Calls returns how many requests arrived
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// Request returns the i-th request body
func (b *Backend) Request(i int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[i]
}

// Path returns the i-th request path
func (b *Backend) Path(i int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paths[i]
}

// SetResponse changes the reply for subsequent requests
func (b *Backend) SetResponse(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Status = status
	b.Body = body
}
