// Package socket implementa domain.Transport sobre gorilla/websocket.
package socket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"bsrBridge/internal/domain"
)

const (
	DefaultDialTimeout = 10 * time.Second
	writeTimeout       = 5 * time.Second
)

var ErrNotConnected = errors.New("socket: not connected")

type Config struct {
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Transport abre un websocket por llamada. Los callbacks vuelven al loop vía Post.
type Transport struct {
	loop        domain.Loop
	dialer      *websocket.Dialer
	dialTimeout time.Duration
	log         *slog.Logger
}

func NewTransport(loop domain.Loop, cfg Config) *Transport {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		loop: loop,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
		dialTimeout: timeout,
		log:         logger.With(slog.String("component", "socket")),
	}
}

func (t *Transport) Open(url string, h domain.SocketHandlers) domain.Socket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &wsSocket{
		url:      url,
		loop:     t.loop,
		handlers: h,
		cancel:   cancel,
		log:      t.log,
	}
	go s.run(ctx, t.dialer, t.dialTimeout)
	return s
}

type wsSocket struct {
	url      string
	loop     domain.Loop
	handlers domain.SocketHandlers
	cancel   context.CancelFunc
	log      *slog.Logger

	closed atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSocket) run(ctx context.Context, dialer *websocket.Dialer, timeout time.Duration) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	conn, _, err := dialer.DialContext(dialCtx, s.url, nil)
	cancel()
	if err != nil {
		s.log.Debug("dial failed", slog.String("url", s.url), slog.Any("err", err))
		s.post(func() {
			if s.handlers.OnError != nil {
				s.handlers.OnError(err)
			}
		})
		s.post(func() {
			if s.handlers.OnClose != nil {
				s.handlers.OnClose(err)
			}
		})
		return
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.post(func() {
		if s.handlers.OnOpen != nil {
			s.handlers.OnOpen()
		}
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.closed.Load() {
				s.post(func() {
					if s.handlers.OnError != nil {
						s.handlers.OnError(err)
					}
				})
			}
			s.post(func() {
				if s.handlers.OnClose != nil {
					s.handlers.OnClose(err)
				}
			})
			_ = conn.Close()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.post(func() {
			if s.handlers.OnMessage != nil {
				s.handlers.OnMessage(data)
			}
		})
	}
}

// post descarta el callback si el dueño ya cerró el socket.
func (s *wsSocket) post(fn func()) {
	s.loop.Post(func() {
		if s.closed.Load() {
			return
		}
		fn()
	})
}

func (s *wsSocket) Send(text string) error {
	if s.closed.Load() {
		return ErrNotConnected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("socket: set deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("socket: write: %w", err)
	}
	return nil
}

// Close es idempotente; después de Close no se entregan más callbacks.
func (s *wsSocket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}
