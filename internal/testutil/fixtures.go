// Package testutil provides test helper utilities for codetrek tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TempProject creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// ConfigProject returns file contents for a workspace with a config file.
func ConfigProject(yaml string) map[string]string {
	return map[string]string{
		".codetrek/config.yaml": yaml,
	}
}

// Response is a scripted reply for one backend path.
type Response struct {
	Status int
	Body   interface{} // marshalled as JSON; a string is written raw
}

// Request is a request recorded by Backend.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Decode unmarshals the recorded body into v.
func (r Request) Decode(t *testing.T, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decoding %s body %q: %v", r.Path, r.Body, err)
	}
}

// Backend is a scripted stand-in for the tutoring backend.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]Response
	gates    map[string]chan struct{}
	requests []Request
	arrived  chan string
}

// NewBackend starts a Backend that answers 404 for unscripted paths.
// It is closed when the test finishes.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		routes:  make(map[string]Response),
		gates:   make(map[string]chan struct{}),
		arrived: make(chan string, 64),
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// Set scripts the reply for path.
func (b *Backend) Set(path string, status int, body interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[path] = Response{Status: status, Body: body}
}

// Hold makes requests to path wait until release is called or the client
// gives up. Arrived reports each held request as it comes in.
func (b *Backend) Hold(path string) (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gates[path] = gate
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Arrived delivers the path of every request as it is received.
func (b *Backend) Arrived() <-chan string { return b.arrived }

// Requests returns the recorded requests for path.
func (b *Backend) Requests(path string) []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Request
	for _, r := range b.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.requests = append(b.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	resp, ok := b.routes[r.URL.Path]
	gate := b.gates[r.URL.Path]
	b.mu.Unlock()

	select {
	case b.arrived <- r.URL.Path:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if !ok {
		resp = Response{Status: http.StatusNotFound, Body: map[string]string{"error": "not found"}}
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if s, raw := resp.Body.(string); raw {
		w.WriteHeader(resp.Status)
		_, _ = io.WriteString(w, s)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}
