package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bsrBridge/internal/app/events"
)

const (
	EnvelopeChat        = "chat"
	EnvelopeFrame       = "frame"
	EnvelopeLocalStatus = "local_status"
	EnvelopeRelayStatus = "relay_status"
	EnvelopeSnapshot    = "status"
)

// Envelope es lo que recibe cada cliente del feed.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Server expone el feed websocket para la UI y la API de control.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	httpSrv *http.Server
	api     *apiHandlers
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(v)
}

// NewServer crea el servidor HTTP escuchando en addr (ej. ":8080").
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr: cfg.addr(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log:     logger.With(slog.String("component", "ws")),
		clients: make(map[*wsClient]struct{}),
		api:     newAPIHandlers(cfg),
	}
}

// Handler arma el mux completo; Start lo sirve.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
	if s.api != nil {
		s.api.register(mux)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			setCORSHeaders(w)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}

// Start levanta el HTTP server y se bloquea hasta que el contexto se cancela.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("shutdown error", slog.Any("err", err))
		}
		s.closeClients()
	}()

	s.log.Info("http server listening", slog.String("addr", s.addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Forward se suscribe al bus y reenvía al feed todo lo que publica el bridge.
// El canal devuelto se cierra cuando ctx se cancela o el bus se cierra.
func (s *Server) Forward(ctx context.Context, bus *events.Bus) <-chan struct{} {
	routes := map[string]string{
		events.TopicChatEvent:   EnvelopeChat,
		events.TopicSourceFrame: EnvelopeFrame,
		events.TopicSourceState: EnvelopeLocalStatus,
		events.TopicRelayState:  EnvelopeRelayStatus,
	}

	var wg sync.WaitGroup
	for topic, envType := range routes {
		ch, unsubscribe := bus.Subscribe(topic)
		wg.Add(1)
		go func(envType string, ch <-chan any, unsubscribe func()) {
			defer wg.Done()
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-ch:
					if !ok {
						return
					}
					s.Broadcast(ctx, envType, payload)
				}
			}
		}(envType, ch, unsubscribe)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// Broadcast manda un envelope a cada cliente conectado y descarta los que fallan.
func (s *Server) Broadcast(ctx context.Context, envType string, data any) {
	payload, err := json.Marshal(Envelope{Type: envType, Data: data})
	if err != nil {
		s.log.Warn("envelope encode failed", slog.String("type", envType), slog.Any("err", err))
		return
	}

	for _, c := range s.snapshotClients() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.writeJSON(json.RawMessage(payload)); err != nil {
			s.log.Debug("removing client due to write error", slog.Any("err", err))
			s.dropClient(c)
		}
	}
}

// ClientCount devuelve cuántos clientes del feed hay conectados.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade error", slog.Any("err", err))
		return
	}

	client := &wsClient{conn: conn}

	if s.api != nil && s.api.ctrl != nil {
		if st, err := s.api.ctrl.Status(r.Context()); err == nil {
			_ = client.writeJSON(Envelope{Type: EnvelopeSnapshot, Data: st})
		}
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	clientCount := len(s.clients)
	s.mu.Unlock()

	s.log.Info("feed client connected", slog.String("remote", r.RemoteAddr), slog.Int("clients", clientCount))

	go s.handleClient(ctx, client)
}

// handleClient solo lee para detectar el cierre; el feed es de una sola vía.
func (s *Server) handleClient(ctx context.Context, client *wsClient) {
	defer func() {
		s.dropClient(client)
		s.log.Info("feed client disconnected", slog.Int("clients", s.ClientCount()))
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, _, err := client.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("feed read error", slog.Any("err", err))
			}
			return
		}
	}
}

func (s *Server) snapshotClients() []*wsClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}

func (s *Server) dropClient(c *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

func (s *Server) closeClients() {
	for _, c := range s.snapshotClients() {
		s.dropClient(c)
	}
}
