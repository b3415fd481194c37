// Package telemetry registra las métricas Prometheus del bridge y el tracer
// OpenTelemetry opcional.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Contadores
	ChatEventsReceived   prometheus.Counter
	FramesIgnored        prometheus.Counter
	RelayMessagesSent    prometheus.Counter
	RelayMessagesDropped *prometheus.CounterVec
	SourceReconnects     prometheus.Counter
	ValidationFailures   *prometheus.CounterVec
	RelaySessionsOpened  prometheus.Counter

	// Gauges
	SourceConnectedGauge prometheus.Gauge
	RelayStatusGauge     prometheus.Gauge
)

// Init registra las métricas (idempotente).
func Init() {
	once.Do(func() {
		ChatEventsReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_chat_events_total", Help: "Chat events decoded from the event source"})
		FramesIgnored = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_source_frames_ignored_total", Help: "Event source frames that were not chat or could not be decoded"})
		RelayMessagesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_relay_messages_sent_total", Help: "PRIVMSG lines written to the relay session"})
		RelayMessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bridge_relay_messages_dropped_total", Help: "Messages not relayed, by reason"}, []string{"reason"})
		SourceReconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_source_reconnects_total", Help: "Scheduled event source reconnect attempts"})
		ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bridge_validation_failures_total", Help: "Credential validation failures, by kind"}, []string{"kind"})
		RelaySessionsOpened = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_relay_sessions_total", Help: "Relay sessions opened"})
		SourceConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bridge_source_connected", Help: "Event source connected=1 disconnected=0"})
		RelayStatusGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bridge_relay_status", Help: "Relay status code (0=disconnected 1=connecting 2=validating 3=authenticating 4=connected 5=failed)"})
	})
}

func IncChatEvents() {
	if ChatEventsReceived != nil {
		ChatEventsReceived.Inc()
	}
}

func IncFramesIgnored() {
	if FramesIgnored != nil {
		FramesIgnored.Inc()
	}
}

func IncRelaySent() {
	if RelayMessagesSent != nil {
		RelayMessagesSent.Inc()
	}
}

func IncRelayDropped(reason string) {
	if RelayMessagesDropped != nil {
		RelayMessagesDropped.WithLabelValues(reason).Inc()
	}
}

func IncSourceReconnects() {
	if SourceReconnects != nil {
		SourceReconnects.Inc()
	}
}

func IncValidationFailure(kind string) {
	if ValidationFailures != nil {
		ValidationFailures.WithLabelValues(kind).Inc()
	}
}

func IncRelaySessions() {
	if RelaySessionsOpened != nil {
		RelaySessionsOpened.Inc()
	}
}

// SetSourceConnected deja el gauge en 1 si está conectada, 0 si no.
func SetSourceConnected(connected bool) {
	if SourceConnectedGauge == nil {
		return
	}
	if connected {
		SourceConnectedGauge.Set(1)
	} else {
		SourceConnectedGauge.Set(0)
	}
}

func SetRelayStatus(code int) {
	if RelayStatusGauge != nil {
		RelayStatusGauge.Set(float64(code))
	}
}
