package models

import (
	"time"
)

// Kind distinguishes the message body variants
type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
)

// AudioSummary is the last-message label shown for audio messages
const AudioSummary = "Audio message"

// AudioBody references a recorded clip; it never changes once recorded
type AudioBody struct {
	URI        string `json:"uri"`
	DurationMs int64  `json:"duration_ms"`
}

// ReplySnapshot is copied from the target message at send time and does not
// follow later edits or deletes of that message
type ReplySnapshot struct {
	ID       string `json:"id"`
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

// Message represents a chat message
type Message struct {
	ID       string         `json:"id"`
	RoomID   string         `json:"room_id"`
	SenderID string         `json:"sender_id"`
	Kind     Kind           `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Audio    *AudioBody     `json:"audio,omitempty"`
	SentAt   time.Time      `json:"sent_at"`
	Edited   bool           `json:"edited,omitempty"`
	ReplyTo  *ReplySnapshot `json:"reply_to,omitempty"`
	Reaction string         `json:"reaction,omitempty"`
	// System marks the generated welcome message of a room
	System bool `json:"system,omitempty"`
}

// Summary is the text used for a room's last-message preview
func (m Message) Summary() string {
	if m.Kind == KindAudio {
		return AudioSummary
	}
	return m.Text
}

// Snapshot captures the fields a reply keeps of m
func (m Message) Snapshot() *ReplySnapshot {
	return &ReplySnapshot{ID: m.ID, SenderID: m.SenderID, Text: m.Summary()}
}

// Clone returns a deep copy of m
func (m Message) Clone() Message {
	if m.Audio != nil {
		a := *m.Audio
		m.Audio = &a
	}
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		m.ReplyTo = &r
	}
	return m
}
