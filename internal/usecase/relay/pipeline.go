// Package relay decide qué mensajes de chat se reenvían al canal y cómo.
package relay

import (
	"log/slog"
	"strings"
	"time"
	"unicode"

	"bsrBridge/internal/domain"
	"bsrBridge/internal/infrastructure/telemetry"
)

const (
	DefaultSplitDelay = 1000 * time.Millisecond

	requestPrefix   = "bsr"
	songMsgCommand  = "!songmsg"
	nicknameDivider = " - "
)

// Comandos que solo un moderador puede disparar a través del bridge.
var moderatorCommands = []string{"!open", "!close"}

type Config struct {
	SplitDelay time.Duration
	Logger     *slog.Logger
}

// Pipeline transforma cada ChatEvent en 0, 1 o 2 mensajes salientes.
// Corre siempre dentro del loop del bridge.
type Pipeline struct {
	out        domain.MessageSender
	loop       domain.Loop
	splitDelay time.Duration
	log        *slog.Logger
}

// NewPipeline crea el pipeline. out debe resolver la sesión vigente en cada
// llamada, así el segundo mensaje de un pedido bsr usa la sesión actual.
func NewPipeline(out domain.MessageSender, loop domain.Loop, cfg Config) *Pipeline {
	delay := cfg.SplitDelay
	if delay <= 0 {
		delay = DefaultSplitDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		out:        out,
		loop:       loop,
		splitDelay: delay,
		log:        logger.With(slog.String("component", "pipeline")),
	}
}

func (p *Pipeline) Handle(ev domain.ChatEvent) {
	comment := ev.Comment

	if isModeratorCommand(comment) && !ev.IsModerator {
		p.log.Info("moderator command ignored", slog.String("nickname", ev.Nickname), slog.String("comment", comment))
		telemetry.IncRelayDropped("not_moderator")
		return
	}

	if strings.HasPrefix(comment, requestPrefix) {
		p.send("!" + comment + nicknameDivider + ev.Nickname)

		second := songMsgCommand + " " + stripRequestPrefix(comment) + " " + ev.Nickname
		p.loop.AfterFunc(p.splitDelay, func() {
			p.send(second)
		})
		return
	}

	p.send(comment + nicknameDivider + ev.Nickname)
}

func (p *Pipeline) send(text string) {
	if err := p.out.Send(text); err != nil {
		p.log.Info("message not relayed", slog.String("text", text), slog.Any("err", err))
		telemetry.IncRelayDropped("not_joined")
		return
	}
	telemetry.IncRelaySent()
}

func isModeratorCommand(comment string) bool {
	for _, cmd := range moderatorCommands {
		if strings.HasPrefix(comment, cmd) {
			return true
		}
	}
	return false
}

// stripRequestPrefix quita un "bsr" inicial y el espacio que lo sigue.
func stripRequestPrefix(comment string) string {
	rest := strings.TrimPrefix(comment, requestPrefix)
	return strings.TrimLeftFunc(rest, unicode.IsSpace)
}
