package testutil

import "bsrBridge/internal/domain"

// StatusRecorder implements domain.StatusReporter and domain.ChatDisplay.
type StatusRecorder struct {
	Local  []bool
	Relay  []domain.StatusReport
	Chats  []domain.ChatEvent
	Frames []string
}

func (r *StatusRecorder) LocalStatus(connected bool) {
	r.Local = append(r.Local, connected)
}

func (r *StatusRecorder) RelayStatus(status domain.ConnectionStatus, reason string) {
	r.Relay = append(r.Relay, domain.StatusReport{Status: status, Reason: reason})
}

func (r *StatusRecorder) DisplayChat(ev domain.ChatEvent) {
	r.Chats = append(r.Chats, ev)
}

func (r *StatusRecorder) DisplayFrame(event string, raw []byte) {
	r.Frames = append(r.Frames, event)
}

// LastRelay returns the most recent relay report.
func (r *StatusRecorder) LastRelay() (domain.StatusReport, bool) {
	if len(r.Relay) == 0 {
		return domain.StatusReport{}, false
	}
	return r.Relay[len(r.Relay)-1], true
}

// RelayStatuses returns only the status values, in order.
func (r *StatusRecorder) RelayStatuses() []domain.ConnectionStatus {
	out := make([]domain.ConnectionStatus, 0, len(r.Relay))
	for _, rep := range r.Relay {
		out = append(out, rep.Status)
	}
	return out
}

// SenderStub records every Send call.
type SenderStub struct {
	Sent []string
	Err  error
}

func (s *SenderStub) Send(text string) error {
	if s.Err != nil {
		return s.Err
	}
	s.Sent = append(s.Sent, text)
	return nil
}
