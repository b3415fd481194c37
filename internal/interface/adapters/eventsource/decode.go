package eventsource

import (
	"errors"

	"github.com/tidwall/gjson"

	"bsrBridge/internal/domain"
)

var (
	ErrInvalidFrame = errors.New("eventsource: invalid json frame")
	ErrMissingData  = errors.New("eventsource: chat frame without data object")
)

// Frame es un mensaje {event, data} ya interpretado.
type Frame struct {
	Event string
	// Chat solo se completa cuando Event es "chat".
	Chat *domain.ChatEvent
}

// DecodeFrame interpreta un frame de la fuente. Los campos numéricos o de
// texto se aceptan en cualquiera de las dos formas; los flags solo cuentan
// si son el literal booleano true.
func DecodeFrame(data []byte) (Frame, error) {
	if !gjson.ValidBytes(data) {
		return Frame{}, ErrInvalidFrame
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Frame{}, ErrInvalidFrame
	}

	frame := Frame{Event: root.Get("event").String()}
	if frame.Event != domain.EventChat {
		return frame, nil
	}

	payload := root.Get("data")
	if !payload.IsObject() {
		return frame, ErrMissingData
	}

	frame.Chat = &domain.ChatEvent{
		UniqueID:      payload.Get("uniqueId").String(),
		UserID:        payload.Get("userId").String(),
		Nickname:      payload.Get("nickname").String(),
		FollowRole:    payload.Get("followRole").String(),
		Comment:       payload.Get("comment").String(),
		IsModerator:   payload.Get("isModerator").Type == gjson.True,
		IsSubscriber:  payload.Get("isSubscriber").Type == gjson.True,
		TopGifterRank: payload.Get("topGifterRank").String(),
	}
	return frame, nil
}
