package runtime

import (
	"context"
	"log/slog"

	"bsrBridge/internal/app/events"
	"bsrBridge/internal/domain"
	"bsrBridge/internal/infrastructure/telemetry"
)

// busReporter publica todo lo que el bridge muestra o reporta. Corre dentro
// del loop, así que nunca bloquea: el bus descarta si un suscriptor se atrasa.
type busReporter struct {
	bus *events.Bus
	log *slog.Logger
}

func newBusReporter(bus *events.Bus, logger *slog.Logger) *busReporter {
	return &busReporter{bus: bus, log: logger.With(slog.String("component", "status"))}
}

func (r *busReporter) DisplayChat(ev domain.ChatEvent) {
	r.bus.Publish(events.TopicChatEvent, events.NewChatEventDTO(ev))
}

func (r *busReporter) DisplayFrame(event string, raw []byte) {
	r.bus.Publish(events.TopicSourceFrame, events.NewFrameDTO(event, raw))
}

func (r *busReporter) LocalStatus(connected bool) {
	r.log.Info("event source status", slog.Bool("connected", connected))
	r.bus.Publish(events.TopicSourceState, events.NewSourceStatusDTO(connected))
}

func (r *busReporter) RelayStatus(status domain.ConnectionStatus, reason string) {
	level := slog.LevelInfo
	if status == domain.StatusFailed {
		level = slog.LevelWarn
	}
	r.log.Log(context.Background(), level, "relay status", slog.String("status", status.String()), slog.String("reason", reason))
	telemetry.SetRelayStatus(int(status))
	r.bus.Publish(events.TopicRelayState, events.NewRelayStatusDTO(status, reason))
}

var (
	_ domain.StatusReporter = (*busReporter)(nil)
	_ domain.ChatDisplay    = (*busReporter)(nil)
)
