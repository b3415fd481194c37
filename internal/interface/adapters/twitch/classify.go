package twitchadapter

import (
	"strings"

	irc "github.com/gempir/go-twitch-irc/v4"

	"bsrBridge/internal/domain"
)

// FrameKind es lo que una línea IRC significa para el handshake.
type FrameKind int

const (
	FrameOther FrameKind = iota
	FrameWelcome
	FrameAuthFailed
	FrameInvalidIdentity
	FrameJoin
	FramePing
)

func (k FrameKind) String() string {
	switch k {
	case FrameWelcome:
		return "welcome"
	case FrameAuthFailed:
		return "auth_failed"
	case FrameInvalidIdentity:
		return "invalid_identity"
	case FrameJoin:
		return "join"
	case FramePing:
		return "ping"
	default:
		return "other"
	}
}

const (
	markerWelcome     = "Welcome, GLHF!"
	markerAuthFailed  = "Login authentication failed"
	markerInvalidNick = "Invalid NICK"
)

// ClassifyInboundFrame clasifica una línea IRC (sin CRLF) respecto del canal destino.
func ClassifyInboundFrame(line, channel string) FrameKind {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return FrameOther
	}
	channel = domain.NormalizeChannel(channel)

	switch msg := parseLine(line).(type) {
	case *irc.PingMessage:
		return FramePing
	case *irc.UserJoinMessage:
		if channel != "" && strings.EqualFold(msg.Channel, channel) {
			return FrameJoin
		}
		return FrameOther
	case *irc.NoticeMessage:
		if kind := classifyText(msg.Message); kind != FrameOther {
			return kind
		}
	case *irc.RawMessage:
		if msg.RawType == "001" {
			return FrameWelcome
		}
	}

	// Twitch a veces manda estos textos fuera de un NOTICE bien formado.
	if kind := classifyText(line); kind != FrameOther {
		return kind
	}
	if strings.Contains(line, " JOIN ") && channel != "" && strings.Contains(strings.ToLower(line), "#"+channel) {
		return FrameJoin
	}
	return FrameOther
}

// parseLine envuelve irc.ParseMessage, que entra en pánico con comandos sin
// parámetros (ej. "NOTICE" pelado). En ese caso devuelve nil y se clasifica por texto.
func parseLine(line string) (msg irc.Message) {
	defer func() {
		if recover() != nil {
			msg = nil
		}
	}()
	return irc.ParseMessage(line)
}

func classifyText(text string) FrameKind {
	switch {
	case strings.Contains(text, markerWelcome):
		return FrameWelcome
	case strings.Contains(text, markerAuthFailed):
		return FrameAuthFailed
	case strings.Contains(text, markerInvalidNick):
		return FrameInvalidIdentity
	default:
		return FrameOther
	}
}

// splitLines separa un frame websocket en líneas IRC.
func splitLines(frame string) []string {
	raw := strings.Split(frame, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// pongFor arma la respuesta a un PING conservando su argumento.
func pongFor(line string) string {
	return "PONG" + strings.TrimPrefix(strings.TrimRight(line, "\r\n"), "PING")
}
