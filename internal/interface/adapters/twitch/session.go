// Package twitchadapter mantiene la sesión IRC-sobre-websocket contra el chat de Twitch.
package twitchadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bsrBridge/internal/domain"
	"bsrBridge/internal/infrastructure/telemetry"
)

const (
	DefaultRelayURL          = "wss://irc-ws.chat.twitch.tv:443"
	DefaultValidationTimeout = 15 * time.Second
)

var ErrRelayNotJoined = errors.New("twitch: relay session not joined")

type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageConnecting
	StageAuthenticating
	StageJoined
	StageFailed
	StageClosed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageValidating:
		return "validating"
	case StageConnecting:
		return "connecting"
	case StageAuthenticating:
		return "authenticating"
	case StageJoined:
		return "joined"
	case StageFailed:
		return "failed"
	case StageClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// active indica si la sesión todavía puede avanzar o cerrarse con reporte.
func (s Stage) active() bool {
	return s == StageValidating || s == StageConnecting || s == StageAuthenticating || s == StageJoined
}

// CredentialValidator decide si vale la pena abrir el socket.
type CredentialValidator interface {
	Validate(ctx context.Context, creds domain.RelayCredentials) error
}

// SessionEnd describe cómo terminó una sesión.
type SessionEnd struct {
	SessionID string
	WasJoined bool
	Manual    bool
	Err       error
}

type Config struct {
	URL               string
	ValidationTimeout time.Duration
	Logger            *slog.Logger
	// OnEnd se llama (dentro del loop) una sola vez cuando la sesión termina.
	OnEnd func(SessionEnd)
}

// Session es una conexión autenticada al gateway. Todo su estado vive en el
// loop; no es segura para uso concurrente fuera de él.
type Session struct {
	id        string
	cfg       Config
	loop      domain.Loop
	transport domain.Transport
	validator CredentialValidator
	reporter  domain.StatusReporter
	log       *slog.Logger

	creds         domain.RelayCredentials
	channel       string
	stage         Stage
	socket        domain.Socket
	channelJoined bool
	ended         bool
}

func NewSession(loop domain.Loop, transport domain.Transport, validator CredentialValidator, reporter domain.StatusReporter, cfg Config) *Session {
	if cfg.URL == "" {
		cfg.URL = DefaultRelayURL
	}
	if cfg.ValidationTimeout <= 0 {
		cfg.ValidationTimeout = DefaultValidationTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		cfg:       cfg,
		loop:      loop,
		transport: transport,
		validator: validator,
		reporter:  reporter,
		log:       logger.With(slog.String("component", "relay"), slog.String("session_id", id)),
		stage:     StageIdle,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Stage() Stage { return s.stage }

func (s *Session) Joined() bool { return s.stage == StageJoined }

// Active indica si Close todavía va a reportar una desconexión.
func (s *Session) Active() bool { return s.stage.active() }

// Open arranca el flujo: validación, socket y handshake. Solo tiene efecto desde Idle.
func (s *Session) Open(creds domain.RelayCredentials) {
	if s.stage != StageIdle {
		return
	}
	s.creds = creds

	if field := creds.MissingField(); field != "" {
		s.fail(&domain.ConfigError{Field: field})
		return
	}
	s.channel = domain.NormalizeChannel(creds.Channel)

	s.stage = StageValidating
	s.report(domain.StatusValidating, domain.ReasonValidating)

	timeout := s.cfg.ValidationTimeout
	s.loop.Go(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.validator.Validate(ctx, creds)
	}, s.onValidated)
}

func (s *Session) onValidated(err error) {
	if s.stage != StageValidating {
		// cerrada mientras se validaba
		return
	}
	if err != nil {
		s.fail(err)
		return
	}

	s.stage = StageConnecting
	s.report(domain.StatusConnecting, domain.ReasonValidated)
	telemetry.IncRelaySessions()

	s.socket = s.transport.Open(s.cfg.URL, domain.SocketHandlers{
		OnOpen:    s.onOpen,
		OnMessage: s.onMessage,
		OnError:   s.onError,
		OnClose:   s.onClose,
	})
}

func (s *Session) onOpen() {
	if s.stage != StageConnecting {
		return
	}

	s.stage = StageAuthenticating
	s.report(domain.StatusAuthenticating, domain.ReasonAuthenticating)

	lines := []string{
		"PASS " + domain.IRCPassword(s.creds.Token),
		"NICK " + strings.ToLower(strings.TrimSpace(s.creds.AccountName)),
		"JOIN #" + s.channel,
	}
	for _, line := range lines {
		if err := s.socket.Send(line); err != nil {
			s.log.Warn("handshake write failed", slog.Any("err", err))
			return
		}
	}
	s.log.Info("handshake sent", slog.String("account", s.creds.AccountName), slog.String("channel", s.channel))
}

func (s *Session) onMessage(data []byte) {
	for _, line := range splitLines(string(data)) {
		if !s.stage.active() {
			return
		}
		kind := ClassifyInboundFrame(line, s.channel)
		s.log.Debug("irc <-", slog.String("kind", kind.String()), slog.String("line", line))

		switch kind {
		case FramePing:
			if err := s.socket.Send(pongFor(line)); err != nil {
				s.log.Warn("pong failed", slog.Any("err", err))
			}
		case FrameWelcome:
			if s.stage == StageAuthenticating {
				s.stage = StageJoined
				s.report(domain.StatusConnected, domain.ReasonConnected)
			}
		case FrameJoin:
			if s.channelJoined {
				continue
			}
			if s.stage == StageAuthenticating || s.stage == StageJoined {
				s.channelJoined = true
				s.stage = StageJoined
				s.report(domain.StatusConnected, domain.JoinedReason(s.channel))
			}
		case FrameAuthFailed:
			s.failAndClose(&domain.AuthError{Kind: domain.AuthInvalidToken})
		case FrameInvalidIdentity:
			s.failAndClose(&domain.AuthError{Kind: domain.AuthInvalidIdentity})
		}
	}
}

func (s *Session) onError(err error) {
	s.log.Warn("relay socket error", slog.String("stage", s.stage.String()), slog.Any("err", err))
}

func (s *Session) onClose(err error) {
	s.socket = nil
	switch s.stage {
	case StageConnecting:
		s.fail(&domain.AuthError{Kind: domain.AuthConnectionError})
	case StageAuthenticating:
		s.fail(&domain.AuthError{Kind: domain.AuthTimeout})
	case StageJoined:
		s.stage = StageClosed
		s.log.Info("relay connection closed", slog.Any("err", err))
		s.report(domain.StatusDisconnected, domain.ReasonConnectionClosed)
		s.end(SessionEnd{WasJoined: true, Err: &domain.ConnectivityError{Conn: domain.ConnRelay, Err: err}})
	}
}

// Close es idempotente. Desde un estado activo reporta la desconexión manual.
func (s *Session) Close() {
	if !s.stage.active() {
		if s.stage == StageIdle {
			s.stage = StageClosed
		}
		return
	}

	wasJoined := s.stage == StageJoined
	s.stage = StageClosed
	s.closeSocket()
	s.report(domain.StatusDisconnected, domain.ReasonManualDisconnect)
	s.end(SessionEnd{WasJoined: wasJoined, Manual: true})
}

// Send escribe un PRIVMSG al canal. Sin JOIN confirmado devuelve ErrRelayNotJoined.
func (s *Session) Send(text string) error {
	if s.stage != StageJoined || s.socket == nil {
		return ErrRelayNotJoined
	}
	text = strings.NewReplacer("\r", " ", "\n", " ").Replace(text)
	return s.socket.Send("PRIVMSG #" + s.channel + " :" + text)
}

func (s *Session) failAndClose(err error) {
	s.fail(err)
	s.closeSocket()
}

func (s *Session) fail(err error) {
	s.stage = StageFailed
	reason := domain.ReasonOf(err, "Connection error occurred")
	s.log.Warn("relay session failed", slog.String("reason", reason), slog.Any("err", err))
	s.report(domain.StatusFailed, reason)
	s.end(SessionEnd{Err: err})
}

func (s *Session) closeSocket() {
	if s.socket == nil {
		return
	}
	if err := s.socket.Close(); err != nil {
		s.log.Debug("relay socket close", slog.Any("err", err))
	}
	s.socket = nil
}

func (s *Session) report(status domain.ConnectionStatus, reason string) {
	if s.reporter != nil {
		s.reporter.RelayStatus(status, reason)
	}
}

func (s *Session) end(e SessionEnd) {
	if s.ended {
		return
	}
	s.ended = true
	e.SessionID = s.id
	if s.cfg.OnEnd != nil {
		s.cfg.OnEnd(e)
	}
}
