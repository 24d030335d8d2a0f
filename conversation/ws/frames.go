package ws

import (
	"encoding/json"
)

// Outbound frame types besides the chat.* store events and notice events
const (
	TypeAudioProgress = "audio.progress"
	TypePong          = "pong"
	TypeError         = "error"
)

// Inbound actions a chat screen can send
const (
	ActionPing          = "ping"
	ActionSend          = "message.send"
	ActionDelete        = "message.delete"
	ActionRecord        = "audio.record"
	ActionRecordStop    = "audio.record.stop"
	ActionPlay          = "audio.play"
	ActionSeek          = "audio.seek"
	ActionStop          = "audio.stop"
	ActionDismissNotice = "notice.dismiss"
)

// Frame is the envelope of every message on the socket
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type sendData struct {
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to,omitempty"`
}

type deleteData struct {
	MessageID string `json:"message_id"`
}

type playData struct {
	MessageID  string `json:"message_id"`
	OffsetMs   int64  `json:"offset_ms"`
	PositionMs int64  `json:"position_ms"`
}

type dismissData struct {
	ID string `json:"id"`
}

func encode(frameType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: frameType, Data: raw})
}
