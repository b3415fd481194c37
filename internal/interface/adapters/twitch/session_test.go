package twitchadapter

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"bsrBridge/internal/domain"
	"bsrBridge/internal/testutil"
)

type stubValidator struct {
	err   error
	calls int
}

func (v *stubValidator) Validate(ctx context.Context, creds domain.RelayCredentials) error {
	v.calls++
	return v.err
}

type sessionHarness struct {
	loop      *testutil.FakeLoop
	transport *testutil.FakeTransport
	validator *stubValidator
	reporter  *testutil.StatusRecorder
	ends      []SessionEnd
	session   *Session
}

func newHarness(t *testing.T) *sessionHarness {
	t.Helper()
	h := &sessionHarness{
		loop:      testutil.NewFakeLoop(),
		validator: &stubValidator{},
		reporter:  &testutil.StatusRecorder{},
	}
	h.transport = testutil.NewFakeTransport(h.loop)
	h.session = NewSession(h.loop, h.transport, h.validator, h.reporter, Config{
		OnEnd: func(e SessionEnd) { h.ends = append(h.ends, e) },
	})
	return h
}

var creds = domain.RelayCredentials{Token: "abc123", AccountName: "BridgeBot", Channel: "#TargetChan"}

// joined lleva la sesión hasta Joined.
func (h *sessionHarness) joined(t *testing.T) *testutil.FakeSocket {
	t.Helper()
	h.session.Open(creds)
	h.loop.Flush()
	sock := h.transport.Last()
	if sock == nil {
		t.Fatal("no socket opened")
	}
	sock.Accept()
	sock.Deliver(":tmi.twitch.tv 001 bridgebot :Welcome, GLHF!\r\n")
	if !h.session.Joined() {
		t.Fatalf("stage = %v, want joined", h.session.Stage())
	}
	return sock
}

func TestSessionHandshakeHappyPath(t *testing.T) {
	h := newHarness(t)
	sock := h.joined(t)

	if sock.URL != DefaultRelayURL {
		t.Fatalf("url = %q", sock.URL)
	}
	wantSent := []string{"PASS oauth:abc123", "NICK bridgebot", "JOIN #targetchan"}
	if !reflect.DeepEqual(sock.Sent, wantSent) {
		t.Fatalf("handshake = %#v, want %#v", sock.Sent, wantSent)
	}

	wantStatuses := []domain.ConnectionStatus{
		domain.StatusValidating,
		domain.StatusConnecting,
		domain.StatusAuthenticating,
		domain.StatusConnected,
	}
	if got := h.reporter.RelayStatuses(); !reflect.DeepEqual(got, wantStatuses) {
		t.Fatalf("statuses = %v, want %v", got, wantStatuses)
	}

	sock.Deliver(":bridgebot!bridgebot@bridgebot.tmi.twitch.tv JOIN #targetchan")
	last, _ := h.reporter.LastRelay()
	if last.Status != domain.StatusConnected || last.Reason != "Joined #targetchan successfully" {
		t.Fatalf("last report = %+v", last)
	}

	if err := h.session.Send("hello - alice"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := sock.Sent[len(sock.Sent)-1]; got != "PRIVMSG #targetchan :hello - alice" {
		t.Fatalf("privmsg = %q", got)
	}
}

func TestSessionJoinWithoutWelcome(t *testing.T) {
	h := newHarness(t)
	h.session.Open(creds)
	h.loop.Flush()
	sock := h.transport.Last()
	sock.Accept()
	sock.Deliver(":bridgebot!bridgebot@bridgebot.tmi.twitch.tv JOIN #targetchan")

	if !h.session.Joined() {
		t.Fatalf("stage = %v, want joined", h.session.Stage())
	}
	sock.Deliver(":bridgebot!bridgebot@bridgebot.tmi.twitch.tv JOIN #targetchan")
	if n := len(h.reporter.Relay); n != 4 {
		t.Fatalf("reports = %d, repeated JOIN should not report again", n)
	}
}

func TestSessionMalformedLineDoesNotStallHandshake(t *testing.T) {
	h := newHarness(t)
	h.session.Open(creds)
	h.loop.Flush()
	sock := h.transport.Last()
	sock.Accept()
	sock.Deliver(":tmi.twitch.tv NOTICE\r\nUSERSTATE\r\n:tmi.twitch.tv 001 bridgebot :Welcome, GLHF!\r\n")

	if !h.session.Joined() {
		t.Fatalf("stage = %v, want joined", h.session.Stage())
	}
}

func TestSessionMissingCredentials(t *testing.T) {
	h := newHarness(t)
	h.session.Open(domain.RelayCredentials{Token: "abc", AccountName: "bot"})
	h.loop.Flush()

	if h.validator.calls != 0 {
		t.Fatalf("validator called %d times", h.validator.calls)
	}
	if len(h.transport.Sockets) != 0 {
		t.Fatal("socket opened without credentials")
	}
	last, _ := h.reporter.LastRelay()
	if last.Status != domain.StatusFailed || last.Reason != "Missing credentials" {
		t.Fatalf("last report = %+v", last)
	}
}

func TestSessionNoSocketBeforeValidation(t *testing.T) {
	h := newHarness(t)
	h.loop.HoldWork = true

	h.session.Open(creds)
	h.loop.Flush()
	if len(h.transport.Sockets) != 0 {
		t.Fatal("socket opened before validation resolved")
	}
	if h.session.Stage() != StageValidating {
		t.Fatalf("stage = %v", h.session.Stage())
	}

	h.loop.ReleaseWork()
	if len(h.transport.Sockets) != 1 {
		t.Fatalf("sockets = %d, want 1", len(h.transport.Sockets))
	}
}

func TestSessionValidationFailure(t *testing.T) {
	h := newHarness(t)
	h.validator.err = &domain.ValidationError{Kind: domain.ValidationInvalidToken, Status: 401}

	h.session.Open(creds)
	h.loop.Flush()

	if len(h.transport.Sockets) != 0 {
		t.Fatal("socket opened after failed validation")
	}
	want := []domain.StatusReport{
		{Status: domain.StatusValidating, Reason: "Checking credentials..."},
		{Status: domain.StatusFailed, Reason: "OAuth token invalid or expired"},
	}
	if !reflect.DeepEqual(h.reporter.Relay, want) {
		t.Fatalf("reports = %+v, want %+v", h.reporter.Relay, want)
	}
	if len(h.ends) != 1 || h.ends[0].WasJoined {
		t.Fatalf("ends = %+v", h.ends)
	}
}

func TestSessionClosedDuringValidation(t *testing.T) {
	h := newHarness(t)
	h.loop.HoldWork = true

	h.session.Open(creds)
	h.loop.Flush()
	h.session.Close()
	h.loop.ReleaseWork()

	if len(h.transport.Sockets) != 0 {
		t.Fatal("socket opened after close")
	}
	last, _ := h.reporter.LastRelay()
	if last.Status != domain.StatusDisconnected || last.Reason != "Manually disconnected" {
		t.Fatalf("last report = %+v", last)
	}
}

func TestSessionAuthFailures(t *testing.T) {
	cases := []struct {
		name   string
		line   string
		reason string
	}{
		{"bad token", ":tmi.twitch.tv NOTICE * :Login authentication failed", "OAuth token invalid or expired"},
		{"bad nick", ":tmi.twitch.tv NOTICE * :Invalid NICK", "Username not found or invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.session.Open(creds)
			h.loop.Flush()
			sock := h.transport.Last()
			sock.Accept()
			sock.Deliver(tc.line)

			if h.session.Stage() != StageFailed {
				t.Fatalf("stage = %v", h.session.Stage())
			}
			if !sock.Closed {
				t.Fatal("socket not closed after auth failure")
			}
			last, _ := h.reporter.LastRelay()
			if last.Status != domain.StatusFailed || last.Reason != tc.reason {
				t.Fatalf("last report = %+v", last)
			}

			n := len(h.reporter.Relay)
			sock.Drop(nil)
			h.session.Close()
			if len(h.reporter.Relay) != n {
				t.Fatal("failed session reported again")
			}
		})
	}
}

func TestSessionCloseWhileConnectingOrAuthenticating(t *testing.T) {
	h := newHarness(t)
	h.session.Open(creds)
	h.loop.Flush()
	h.transport.Last().Drop(errors.New("dial failed"))
	last, _ := h.reporter.LastRelay()
	if last.Status != domain.StatusFailed || last.Reason != "Connection failed - check internet" {
		t.Fatalf("connecting close = %+v", last)
	}

	h = newHarness(t)
	h.session.Open(creds)
	h.loop.Flush()
	sock := h.transport.Last()
	sock.Accept()
	sock.Drop(nil)
	last, _ = h.reporter.LastRelay()
	if last.Status != domain.StatusFailed || last.Reason != "Authentication timeout" {
		t.Fatalf("authenticating close = %+v", last)
	}
}

func TestSessionRemoteCloseAfterJoin(t *testing.T) {
	h := newHarness(t)
	sock := h.joined(t)
	sock.Drop(nil)

	last, _ := h.reporter.LastRelay()
	if last.Status != domain.StatusDisconnected || last.Reason != "Connection closed" {
		t.Fatalf("last report = %+v", last)
	}
	if len(h.ends) != 1 || !h.ends[0].WasJoined || h.ends[0].Manual {
		t.Fatalf("ends = %+v", h.ends)
	}
	if err := h.session.Send("x"); !errors.Is(err, ErrRelayNotJoined) {
		t.Fatalf("send after close = %v", err)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	sock := h.joined(t)

	h.session.Close()
	h.session.Close()
	h.session.Close()

	disconnects := 0
	for _, r := range h.reporter.Relay {
		if r.Status == domain.StatusDisconnected {
			disconnects++
		}
	}
	if disconnects != 1 {
		t.Fatalf("disconnect reports = %d, want 1", disconnects)
	}
	if !sock.Closed {
		t.Fatal("socket still open")
	}
	if len(h.ends) != 1 || !h.ends[0].Manual {
		t.Fatalf("ends = %+v", h.ends)
	}
}

func TestSessionCloseFromIdleReportsNothing(t *testing.T) {
	h := newHarness(t)
	h.session.Close()
	if len(h.reporter.Relay) != 0 {
		t.Fatalf("reports = %+v", h.reporter.Relay)
	}
	h.session.Open(creds)
	h.loop.Flush()
	if len(h.transport.Sockets) != 0 {
		t.Fatal("closed session reopened")
	}
}

func TestSessionSendRequiresJoin(t *testing.T) {
	h := newHarness(t)
	if err := h.session.Send("x"); !errors.Is(err, ErrRelayNotJoined) {
		t.Fatalf("send before open = %v", err)
	}
	h.session.Open(creds)
	h.loop.Flush()
	h.transport.Last().Accept()
	if err := h.session.Send("x"); !errors.Is(err, ErrRelayNotJoined) {
		t.Fatalf("send while authenticating = %v", err)
	}
}

func TestSessionAnswersPing(t *testing.T) {
	h := newHarness(t)
	sock := h.joined(t)
	sock.Deliver("PING :tmi.twitch.tv\r\n")
	if got := sock.Sent[len(sock.Sent)-1]; got != "PONG :tmi.twitch.tv" {
		t.Fatalf("pong = %q", got)
	}
}

func TestSessionStripsLineBreaks(t *testing.T) {
	h := newHarness(t)
	sock := h.joined(t)
	if err := h.session.Send("a\r\nJOIN #other"); err != nil {
		t.Fatal(err)
	}
	if got := sock.Sent[len(sock.Sent)-1]; got != "PRIVMSG #targetchan :a  JOIN #other" {
		t.Fatalf("privmsg = %q", got)
	}
}
