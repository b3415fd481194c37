// Package app arma el bridge: fuente de eventos, pipeline y sesión de relay
// corriendo sobre un único loop.
package app

import (
	"log/slog"
	"time"

	"bsrBridge/internal/domain"
	"bsrBridge/internal/interface/adapters/eventsource"
	twitchadapter "bsrBridge/internal/interface/adapters/twitch"
	"bsrBridge/internal/usecase/relay"
)

const DefaultRelayReconnectDelay = 2000 * time.Millisecond

// Settings es la vista que el bridge tiene de la configuración persistida.
type Settings interface {
	domain.ConnectionConfigProvider
	domain.CredentialsProvider
}

type BridgeConfig struct {
	RelayURL            string
	ValidationTimeout   time.Duration
	SplitDelay          time.Duration
	SourceReconnect     time.Duration
	RelayAutoReconnect  bool
	RelayReconnectDelay time.Duration
	Logger              *slog.Logger
}

// Status es la foto del bridge que se expone a la UI.
type Status struct {
	SourceConnected bool                `json:"source_connected"`
	SourceURL       string              `json:"source_url"`
	Relay           domain.StatusReport `json:"relay"`
	RelayEnabled    bool                `json:"relay_enabled"`
	Editing         bool                `json:"editing"`
	SessionID       string              `json:"session_id,omitempty"`
}

// Bridge es dueño de a lo sumo una conexión a la fuente y una sesión de relay.
// Todos sus métodos deben llamarse desde el loop.
type Bridge struct {
	loop      domain.Loop
	transport domain.Transport
	validator twitchadapter.CredentialValidator
	settings  Settings
	display   domain.ChatDisplay
	reporter  domain.StatusReporter
	cfg       BridgeConfig
	log       *slog.Logger

	source   *eventsource.Client
	pipeline *relay.Pipeline
	session  *twitchadapter.Session

	relayEnabled bool
	editing      bool
	relayTimer   domain.Timer

	sourceConnected bool
	relayStatus     domain.StatusReport
}

func NewBridge(loop domain.Loop, transport domain.Transport, validator twitchadapter.CredentialValidator, settings Settings, display domain.ChatDisplay, reporter domain.StatusReporter, cfg BridgeConfig) *Bridge {
	if cfg.RelayReconnectDelay <= 0 {
		cfg.RelayReconnectDelay = DefaultRelayReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bridge{
		loop:      loop,
		transport: transport,
		validator: validator,
		settings:  settings,
		display:   display,
		reporter:  reporter,
		cfg:       cfg,
		log:       logger.With(slog.String("component", "bridge")),
	}

	b.pipeline = relay.NewPipeline(b, loop, relay.Config{SplitDelay: cfg.SplitDelay, Logger: logger})
	b.source = eventsource.NewClient(loop, transport, settings, eventsource.Handlers{
		OnEvent:  b.handleChat,
		OnFrame:  b.handleFrame,
		OnStatus: b.LocalStatus,
	}, eventsource.Config{ReconnectDelay: cfg.SourceReconnect, Logger: logger})

	return b
}

// Start conecta la fuente y, si enableRelay, abre la sesión con las credenciales guardadas.
func (b *Bridge) Start(enableRelay bool) {
	b.source.Connect(b.settings.ConnectionConfig())
	if enableRelay {
		b.ConnectRelay()
	}
}

// ConnectSource reemplaza la conexión con la fuente (botón Connect).
func (b *Bridge) ConnectSource(cfg domain.ConnectionConfig) {
	b.source.Connect(cfg)
}

// ConnectRelay activa el relay y abre una sesión nueva con la foto actual de credenciales.
func (b *Bridge) ConnectRelay() {
	b.relayEnabled = true
	b.editing = false
	b.replaceSession(b.settings.Credentials())
}

// DisconnectRelay desactiva el relay (toggle off).
func (b *Bridge) DisconnectRelay() {
	b.relayEnabled = false
	if !b.closeSession() {
		b.RelayStatus(domain.StatusDisconnected, domain.ReasonManualDisconnect)
	}
}

// EditRelay cierra la sesión para editar credenciales sin tocar el toggle.
func (b *Bridge) EditRelay() {
	b.editing = true
	b.closeSession()
	b.RelayStatus(domain.StatusDisconnected, domain.ReasonReadyToEdit)
}

// CredentialsSaved sale del modo edición y reconecta si el relay está activo.
func (b *Bridge) CredentialsSaved() {
	b.editing = false
	if b.relayEnabled {
		b.replaceSession(b.settings.Credentials())
		return
	}
	b.RelayStatus(domain.StatusDisconnected, domain.ReasonSettingsSaved)
}

// Send envía por la sesión vigente; lo usa el pipeline.
func (b *Bridge) Send(text string) error {
	if b.session == nil {
		return twitchadapter.ErrRelayNotJoined
	}
	return b.session.Send(text)
}

func (b *Bridge) Shutdown() {
	b.source.Shutdown()
	b.stopRelayTimer()
	if b.session != nil {
		b.session.Close()
	}
}

func (b *Bridge) Status() Status {
	st := Status{
		SourceConnected: b.sourceConnected,
		SourceURL:       b.source.Target(),
		Relay:           b.relayStatus,
		RelayEnabled:    b.relayEnabled,
		Editing:         b.editing,
	}
	if b.session != nil {
		st.SessionID = b.session.ID()
	}
	return st
}

// ---------- domain.StatusReporter ----------

func (b *Bridge) LocalStatus(connected bool) {
	b.sourceConnected = connected
	if b.reporter != nil {
		b.reporter.LocalStatus(connected)
	}
}

func (b *Bridge) RelayStatus(status domain.ConnectionStatus, reason string) {
	b.relayStatus = domain.StatusReport{Status: status, Reason: reason}
	if b.reporter != nil {
		b.reporter.RelayStatus(status, reason)
	}
}

// ---------- internals ----------

func (b *Bridge) handleChat(ev domain.ChatEvent) {
	if b.display != nil {
		b.display.DisplayChat(ev)
	}
	b.pipeline.Handle(ev)
}

func (b *Bridge) handleFrame(event string, raw []byte) {
	if b.display != nil {
		b.display.DisplayFrame(event, raw)
	}
}

func (b *Bridge) replaceSession(creds domain.RelayCredentials) {
	b.stopRelayTimer()
	if b.session != nil {
		b.session.Close()
		b.session = nil
	}

	session := twitchadapter.NewSession(b.loop, b.transport, b.validator, b, twitchadapter.Config{
		URL:               b.cfg.RelayURL,
		ValidationTimeout: b.cfg.ValidationTimeout,
		Logger:            b.cfg.Logger,
		OnEnd:             b.onSessionEnd,
	})
	b.session = session
	b.log.Info("opening relay session", slog.String("session_id", session.ID()), slog.String("channel", creds.Channel))
	session.Open(creds)
}

// closeSession cierra la sesión vigente e indica si ésta reportó la desconexión.
func (b *Bridge) closeSession() bool {
	b.stopRelayTimer()
	if b.session == nil {
		return false
	}
	active := b.session.Active()
	b.session.Close()
	return active
}

func (b *Bridge) onSessionEnd(e twitchadapter.SessionEnd) {
	if b.session == nil || b.session.ID() != e.SessionID {
		return
	}
	if e.Manual || !e.WasJoined {
		return
	}
	if !b.cfg.RelayAutoReconnect || !b.relayEnabled || b.editing {
		return
	}

	b.log.Info("relay session lost, scheduling reconnect", slog.Duration("delay", b.cfg.RelayReconnectDelay))
	sessionID := e.SessionID
	var timer domain.Timer
	timer = b.loop.AfterFunc(b.cfg.RelayReconnectDelay, func() {
		if b.relayTimer != timer {
			return
		}
		b.relayTimer = nil
		if !b.relayEnabled || b.editing || b.session == nil || b.session.ID() != sessionID {
			return
		}
		b.replaceSession(b.settings.Credentials())
	})
	b.relayTimer = timer
}

func (b *Bridge) stopRelayTimer() {
	if b.relayTimer != nil {
		b.relayTimer.Stop()
		b.relayTimer = nil
	}
}

var (
	_ domain.MessageSender  = (*Bridge)(nil)
	_ domain.StatusReporter = (*Bridge)(nil)
)
