package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockHelixServer mocks the Helix /users endpoint. The zero handler answers 404.
type MockHelixServer struct {
	*httptest.Server

	mu       sync.Mutex
	Requests []*http.Request
	Handler  http.HandlerFunc
}

func NewMockHelixServer(t *testing.T) *MockHelixServer {
	t.Helper()
	m := &MockHelixServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.Requests = append(m.Requests, r.Clone(r.Context()))
		handler := m.Handler
		m.mu.Unlock()
		if handler == nil || r.URL.Path != "/users" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// RequestCount returns how many requests reached the server.
func (m *MockHelixServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// Request returns the i-th recorded request.
func (m *MockHelixServer) Request(i int) *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests[i]
}

// UsersByLogin answers the token owner with self, and ?login= lookups from known.
func (m *MockHelixServer) UsersByLogin(self string, known ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handler = func(w http.ResponseWriter, r *http.Request) {
		logins := r.URL.Query()["login"]
		data := []map[string]string{}
		if len(logins) == 0 {
			data = append(data, map[string]string{"id": "1", "login": self})
		}
		for _, l := range logins {
			for _, k := range known {
				if l == k {
					data = append(data, map[string]string{"id": "2", "login": k})
				}
			}
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": data})
	}
}

// Status answers every request with code and a Helix-style error body.
func (m *MockHelixServer) Status(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handler = func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, code, map[string]any{
			"error":   http.StatusText(code),
			"status":  code,
			"message": "mock error",
		})
	}
}

func WriteJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
