// Package eventsource mantiene la conexión persistente con la fuente local de
// eventos de chat y la reabre cada vez que se cae.
package eventsource

import (
	"log/slog"
	"time"

	"bsrBridge/internal/domain"
	"bsrBridge/internal/infrastructure/telemetry"
)

const DefaultReconnectDelay = 2000 * time.Millisecond

type Handlers struct {
	OnEvent  func(ev domain.ChatEvent)
	OnFrame  func(event string, raw []byte)
	OnStatus func(connected bool)
}

type Config struct {
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

// Client vive dentro del loop del bridge. Cada intento crea un socket nuevo;
// los callbacks de sockets anteriores se descartan por generación.
type Client struct {
	loop      domain.Loop
	transport domain.Transport
	provider  domain.ConnectionConfigProvider
	handlers  Handlers
	delay     time.Duration
	log       *slog.Logger

	socket    domain.Socket
	gen       int
	timer     domain.Timer
	connected bool
	reported  bool
	shutdown  bool
	target    string
}

func NewClient(loop domain.Loop, transport domain.Transport, provider domain.ConnectionConfigProvider, h Handlers, cfg Config) *Client {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		loop:      loop,
		transport: transport,
		provider:  provider,
		handlers:  h,
		delay:     delay,
		log:       logger.With(slog.String("component", "eventsource")),
	}
}

// Connect reemplaza la conexión actual por una nueva hacia cfg.
func (c *Client) Connect(cfg domain.ConnectionConfig) {
	c.shutdown = false
	c.open(cfg)
}

// Reconnect abre una conexión nueva con los valores actuales del proveedor.
func (c *Client) Reconnect() {
	c.Connect(c.provider.ConnectionConfig())
}

// Shutdown cierra el socket y cancela reconexiones pendientes.
func (c *Client) Shutdown() {
	c.shutdown = true
	c.stopTimer()
	c.gen++
	if c.socket != nil {
		_ = c.socket.Close()
		c.socket = nil
	}
	c.setStatus(false)
}

// Connected informa el último estado conocido.
func (c *Client) Connected() bool { return c.connected }

// Target es la URL del último intento.
func (c *Client) Target() string { return c.target }

func (c *Client) open(cfg domain.ConnectionConfig) {
	c.stopTimer()
	if c.socket != nil {
		_ = c.socket.Close()
		c.socket = nil
	}

	c.gen++
	gen := c.gen
	c.target = cfg.URL()
	c.log.Info("connecting to event source", slog.String("url", c.target))

	c.socket = c.transport.Open(c.target, domain.SocketHandlers{
		OnOpen:    func() { c.onOpen(gen) },
		OnMessage: func(data []byte) { c.onMessage(gen, data) },
		OnError:   func(err error) { c.onError(gen, err) },
		OnClose:   func(err error) { c.onClose(gen, err) },
	})
}

func (c *Client) onOpen(gen int) {
	if gen != c.gen {
		return
	}
	c.log.Info("event source connected", slog.String("url", c.target))
	c.setStatus(true)
}

func (c *Client) onMessage(gen int, data []byte) {
	if gen != c.gen {
		return
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		c.log.Warn("event source frame ignored", slog.Any("err", err))
		telemetry.IncFramesIgnored()
		return
	}

	if frame.Chat == nil {
		c.log.Debug("non-chat frame", slog.String("event", frame.Event))
		telemetry.IncFramesIgnored()
		if c.handlers.OnFrame != nil {
			c.handlers.OnFrame(frame.Event, data)
		}
		return
	}

	telemetry.IncChatEvents()
	if c.handlers.OnEvent != nil {
		c.handlers.OnEvent(*frame.Chat)
	}
}

func (c *Client) onError(gen int, err error) {
	if gen != c.gen {
		return
	}
	c.log.Warn("event source error", slog.Any("err", &domain.ConnectivityError{Conn: domain.ConnEventSource, Err: err}))
	c.setStatus(false)
}

func (c *Client) onClose(gen int, err error) {
	if gen != c.gen {
		return
	}
	c.socket = nil
	c.setStatus(false)
	if c.shutdown {
		return
	}

	c.log.Info("event source closed, reconnecting", slog.Duration("delay", c.delay), slog.Any("err", err))
	c.stopTimer()
	var timer domain.Timer
	timer = c.loop.AfterFunc(c.delay, func() {
		// un Connect manual pudo reemplazar este timer después de dispararse
		if c.timer != timer || c.shutdown {
			return
		}
		c.timer = nil
		telemetry.IncSourceReconnects()
		c.open(c.provider.ConnectionConfig())
	})
	c.timer = timer
}

func (c *Client) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) setStatus(connected bool) {
	if c.reported && c.connected == connected {
		return
	}
	c.reported = true
	c.connected = connected
	telemetry.SetSourceConnected(connected)
	if c.handlers.OnStatus != nil {
		c.handlers.OnStatus(connected)
	}
}
