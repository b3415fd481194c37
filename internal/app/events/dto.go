package events

import (
	"encoding/json"
	"time"

	"bsrBridge/internal/domain"
)

// ChatEventDTO es el payload que recibe la UI por cada mensaje de la fuente.
type ChatEventDTO struct {
	UniqueID      string `json:"unique_id"`
	UserID        string `json:"user_id,omitempty"`
	Nickname      string `json:"nickname"`
	Comment       string `json:"comment"`
	FollowRole    string `json:"follow_role,omitempty"`
	IsModerator   bool   `json:"is_moderator"`
	IsSubscriber  bool   `json:"is_subscriber"`
	TopGifterRank string `json:"top_gifter_rank,omitempty"`
	Timestamp     string `json:"timestamp"`
}

func NewChatEventDTO(ev domain.ChatEvent) ChatEventDTO {
	return ChatEventDTO{
		UniqueID:      ev.UniqueID,
		UserID:        ev.UserID,
		Nickname:      ev.Nickname,
		Comment:       ev.Comment,
		FollowRole:    ev.FollowRole,
		IsModerator:   ev.IsModerator,
		IsSubscriber:  ev.IsSubscriber,
		TopGifterRank: ev.TopGifterRank,
		Timestamp:     now(),
	}
}

// FrameDTO es un frame no-chat de la fuente, tal como llegó.
type FrameDTO struct {
	Event     string          `json:"event"`
	Raw       json.RawMessage `json:"raw"`
	Timestamp string          `json:"timestamp"`
}

func NewFrameDTO(event string, raw []byte) FrameDTO {
	payload := make([]byte, len(raw))
	copy(payload, raw)
	return FrameDTO{Event: event, Raw: payload, Timestamp: now()}
}

type SourceStatusDTO struct {
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"`
}

type RelayStatusDTO struct {
	Status    domain.ConnectionStatus `json:"status"`
	Reason    string                  `json:"reason"`
	Timestamp string                  `json:"timestamp"`
}

func NewSourceStatusDTO(connected bool) SourceStatusDTO {
	return SourceStatusDTO{Connected: connected, Timestamp: now()}
}

func NewRelayStatusDTO(status domain.ConnectionStatus, reason string) RelayStatusDTO {
	return RelayStatusDTO{Status: status, Reason: reason, Timestamp: now()}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
