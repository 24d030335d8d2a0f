package models

import (
	"strings"
	"time"
)

// Participant is the other party of a room
type Participant struct {
	ID        string `json:"id" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Image     string `json:"image,omitempty"`
	Email     string `json:"email,omitempty"`
}

// DisplayName returns the participant's full name, falling back to the id
func (p Participant) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.ID
	}
	return name
}

// LastMessage is the preview shown in the chat list
type LastMessage struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// ChatRoom is a conversation with exactly one other participant
type ChatRoom struct {
	RoomID      string      `json:"room_id"`
	Participant Participant `json:"participant"`
	LastMessage LastMessage `json:"last_message"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Snapshot is the persisted layout of the chat state. Rooms keep creation
// order and each room's messages keep insertion order.
type Snapshot struct {
	Rooms    []ChatRoom           `json:"rooms"`
	Messages map[string][]Message `json:"messages"`
}
