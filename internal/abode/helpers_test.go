package abode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// recordedRequest is one request seen by fakeAbode.
type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// fakeAbode is an httptest server standing in for the Abode REST API.
type fakeAbode struct {
	mu       sync.Mutex
	requests []recordedRequest
	mux      *http.ServeMux
	server   *httptest.Server
}

func newFakeAbode(t *testing.T) *fakeAbode {
	t.Helper()

	f := &fakeAbode{mux: http.NewServeMux()}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		})
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAbode) handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, h)
}

func (f *fakeAbode) client(session *Session) *Client {
	return NewClient(session, ClientConfig{BaseURL: f.server.URL, HostVersion: "1.9.0"})
}

func (f *fakeAbode) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, r := range f.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeAbode) last(path string) (recordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Path == path {
			return f.requests[i], true
		}
	}
	return recordedRequest{}, false
}

func (f *fakeAbode) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// authedSession returns a session with every auth field populated.
func authedSession() *Session {
	s := NewSessionWithInstanceID("fixed-id")
	s.SetCredentials("user@example.com", "secret")
	s.SetSession("s1")
	s.SetAPIKey("k1")
	s.SetOAuthToken("t1")
	return s
}

// countingRenewer records Renew calls.
type countingRenewer struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRenewer) Renew(context.Context) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *countingRenewer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// recordingLogger captures log messages by level.
type recordingLogger struct {
	mu       sync.Mutex
	messages map[string][]string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{messages: make(map[string][]string)}
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	l.messages[level] = append(l.messages[level], msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages[level] {
		if m == msg {
			return true
		}
	}
	return false
}
