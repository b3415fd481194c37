package testutil

import (
	"errors"
	"time"

	"bsrBridge/internal/domain"
)

var ErrSocketClosed = errors.New("testutil: socket closed")

// FakeTransport records every Open call. Sockets never connect by themselves;
// the test drives them with Accept, Deliver and Drop.
type FakeTransport struct {
	Sockets []*FakeSocket
	// OpenedAt holds the loop time of each Open call when Loop is set.
	OpenedAt []time.Duration
	Loop     *FakeLoop
}

func NewFakeTransport(loop *FakeLoop) *FakeTransport {
	return &FakeTransport{Loop: loop}
}

func (t *FakeTransport) Open(url string, h domain.SocketHandlers) domain.Socket {
	s := &FakeSocket{URL: url, handlers: h}
	t.Sockets = append(t.Sockets, s)
	if t.Loop != nil {
		t.OpenedAt = append(t.OpenedAt, t.Loop.Now())
	}
	return s
}

// Last returns the most recently opened socket, or nil.
func (t *FakeTransport) Last() *FakeSocket {
	if len(t.Sockets) == 0 {
		return nil
	}
	return t.Sockets[len(t.Sockets)-1]
}

type FakeSocket struct {
	URL    string
	Sent   []string
	Closed bool

	handlers domain.SocketHandlers
}

func (s *FakeSocket) Send(text string) error {
	if s.Closed {
		return ErrSocketClosed
	}
	s.Sent = append(s.Sent, text)
	return nil
}

// Close marks the socket closed. No callbacks fire after a local Close.
func (s *FakeSocket) Close() error {
	s.Closed = true
	return nil
}

// Accept simulates the remote end accepting the connection.
func (s *FakeSocket) Accept() {
	if s.handlers.OnOpen != nil {
		s.handlers.OnOpen()
	}
}

// Deliver simulates an inbound text frame.
func (s *FakeSocket) Deliver(text string) {
	if s.handlers.OnMessage != nil {
		s.handlers.OnMessage([]byte(text))
	}
}

// Fail simulates a socket error event.
func (s *FakeSocket) Fail(err error) {
	if s.handlers.OnError != nil {
		s.handlers.OnError(err)
	}
}

// Drop simulates the remote end terminating the connection.
func (s *FakeSocket) Drop(err error) {
	s.Closed = true
	if s.handlers.OnClose != nil {
		s.handlers.OnClose(err)
	}
}
