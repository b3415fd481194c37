package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bsrBridge/internal/app"
	"bsrBridge/internal/app/events"
	"bsrBridge/internal/domain"
)

type fakeController struct {
	mu      sync.Mutex
	status  app.Status
	creds   domain.RelayCredentials
	target  domain.ConnectionConfig
	connect bool
	actions []string
	saveErr error
}

func (f *fakeController) Status(ctx context.Context) (app.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeController) Credentials(ctx context.Context) (domain.RelayCredentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds, nil
}

func (f *fakeController) SaveCredentials(ctx context.Context, creds domain.RelayCredentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.creds = creds
	f.actions = append(f.actions, "save")
	return nil
}

func (f *fakeController) record(action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeController) ConnectRelay(ctx context.Context) error    { return f.record("connect") }
func (f *fakeController) DisconnectRelay(ctx context.Context) error { return f.record("disconnect") }
func (f *fakeController) EditRelay(ctx context.Context) error       { return f.record("edit") }

func (f *fakeController) SourceTarget(ctx context.Context) (domain.ConnectionConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target, nil
}

func (f *fakeController) SaveSourceTarget(ctx context.Context, cfg domain.ConnectionConfig, connect bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = cfg
	f.connect = connect
	return nil
}

func (f *fakeController) saved() (domain.RelayCredentials, domain.ConnectionConfig, bool, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds, f.target, f.connect, append([]string(nil), f.actions...)
}

func newTestServer(t *testing.T, ctrl *fakeController) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(Config{Controller: ctrl})
	ts := httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return srv, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	ctrl := &fakeController{status: app.Status{
		SourceConnected: true,
		Relay:           domain.StatusReport{Status: domain.StatusConnected, Reason: "Successfully connected to chat"},
	}}
	_, ts := newTestServer(t, ctrl)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("cors header = %q", got)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	relay := body["relay"].(map[string]any)
	if body["source_connected"] != true || relay["status"] != "connected" {
		t.Fatalf("body = %v", body)
	}
}

func TestCredentialsRoundTripNeverReturnsToken(t *testing.T) {
	ctrl := &fakeController{}
	_, ts := newTestServer(t, ctrl)

	resp := postJSON(t, ts.URL+"/api/credentials", map[string]string{
		"token":        "oauth:secret123",
		"account_name": " BridgeBot ",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	want := domain.RelayCredentials{Token: "secret123", AccountName: "BridgeBot", Channel: "BridgeBot"}
	if creds, _, _, _ := ctrl.saved(); creds != want {
		t.Fatalf("saved = %+v, want %+v", creds, want)
	}

	get, err := http.Get(ts.URL + "/api/credentials")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer get.Body.Close()
	var raw bytes.Buffer
	raw.ReadFrom(get.Body)
	if strings.Contains(raw.String(), "secret123") {
		t.Fatalf("token leaked: %s", raw.String())
	}
	var body credentialsResponse
	if err := json.Unmarshal(raw.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.HasToken || !body.Complete || body.Channel != "BridgeBot" {
		t.Fatalf("body = %+v", body)
	}
}

func TestCredentialsSaveKeepsStoredToken(t *testing.T) {
	ctrl := &fakeController{creds: domain.RelayCredentials{Token: "secret123", AccountName: "bot", Channel: "bot"}}
	_, ts := newTestServer(t, ctrl)

	resp := postJSON(t, ts.URL+"/api/credentials", map[string]string{
		"account_name": "bot",
		"channel":      "other",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	want := domain.RelayCredentials{Token: "secret123", AccountName: "bot", Channel: "other"}
	creds, _, _, _ := ctrl.saved()
	if creds != want || !creds.Complete() {
		t.Fatalf("saved = %+v, want %+v", creds, want)
	}
	var body credentialsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.HasToken || !body.Complete {
		t.Fatalf("body = %+v", body)
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	ctrl := &fakeController{saveErr: errors.New("sqlite: save credentials: database is locked")}
	_, ts := newTestServer(t, ctrl)

	resp := postJSON(t, ts.URL+"/api/credentials", map[string]string{"token": "abc", "account_name": "bot"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal error" {
		t.Fatalf("error = %q", body["error"])
	}
}

func TestRelayActions(t *testing.T) {
	ctrl := &fakeController{}
	_, ts := newTestServer(t, ctrl)

	for _, path := range []string{"/api/relay/connect", "/api/relay/edit", "/api/relay/disconnect"} {
		resp := postJSON(t, ts.URL+path, map[string]string{})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
	want := []string{"connect", "edit", "disconnect"}
	if _, _, _, actions := ctrl.saved(); strings.Join(actions, ",") != strings.Join(want, ",") {
		t.Fatalf("actions = %v", actions)
	}

	resp, err := http.Get(ts.URL + "/api/relay/connect")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET connect status = %d", resp.StatusCode)
	}
}

func TestSourceEndpoint(t *testing.T) {
	ctrl := &fakeController{}
	_, ts := newTestServer(t, ctrl)

	resp := postJSON(t, ts.URL+"/api/source", map[string]any{"address": "ws://10.0.0.9", "port": "9000", "connect": true})
	defer resp.Body.Close()
	var body sourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.URL != "ws://10.0.0.9:9000/" {
		t.Fatalf("url = %q", body.URL)
	}
	if _, target, connect, _ := ctrl.saved(); !connect || target.Port != "9000" {
		t.Fatalf("controller = %+v connect=%v", target, connect)
	}
}

func TestPreflightAndHealth(t *testing.T) {
	_, ts := newTestServer(t, &fakeController{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/credentials", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}

	health, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", health.StatusCode)
	}
}

func TestFeedForwardsBusEvents(t *testing.T) {
	ctrl := &fakeController{status: app.Status{SourceURL: "ws://localhost:21213/"}}
	srv, ts := newTestServer(t, ctrl)

	bus := events.NewBus()
	ctx, stop := context.WithCancel(context.Background())
	done := srv.Forward(ctx, bus)
	defer func() {
		stop()
		<-done
	}()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first Envelope
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != EnvelopeSnapshot {
		t.Fatalf("first envelope = %q", first.Type)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	bus.Publish(events.TopicChatEvent, events.NewChatEventDTO(domain.ChatEvent{Nickname: "alice", Comment: "bsr 1a2b"}))

	var env struct {
		Type string              `json:"type"`
		Data events.ChatEventDTO `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read chat: %v", err)
	}
	if env.Type != EnvelopeChat || env.Data.Nickname != "alice" || env.Data.Comment != "bsr 1a2b" {
		t.Fatalf("envelope = %+v", env)
	}
}
