package store

import "pratham-chat/backend/conversation/models"

// Command is one of the mutations the store accepts. The set is closed:
// only the types in this file implement it.
type Command interface {
	Name() string
	isCommand()
}

// CreateRoom opens a room with Participant unless one already exists
type CreateRoom struct {
	Requester   string
	Participant models.Participant
	OpeningText string
}

// SendMessage appends Message to RoomID and refreshes the room preview
type SendMessage struct {
	RoomID  string
	Message models.Message
}

// EditMessage replaces the text of a text message
type EditMessage struct {
	RoomID    string
	MessageID string
	Text      string
}

// ReactToMessage sets the single reaction slot of a message
type ReactToMessage struct {
	RoomID    string
	MessageID string
	Reaction  string
}

// DeleteMessage removes one message; the room preview is left as is
type DeleteMessage struct {
	RoomID    string
	MessageID string
}

// DeleteRoom removes a room and every message in it
type DeleteRoom struct {
	RoomID string
}

// ClearAll drops every room and message
type ClearAll struct{}

func (CreateRoom) Name() string     { return "create_room" }
func (SendMessage) Name() string    { return "send_message" }
func (EditMessage) Name() string    { return "edit_message" }
func (ReactToMessage) Name() string { return "react" }
func (DeleteMessage) Name() string  { return "delete_message" }
func (DeleteRoom) Name() string     { return "delete_room" }
func (ClearAll) Name() string       { return "clear_all" }

func (CreateRoom) isCommand()     {}
func (SendMessage) isCommand()    {}
func (EditMessage) isCommand()    {}
func (ReactToMessage) isCommand() {}
func (DeleteMessage) isCommand()  {}
func (DeleteRoom) isCommand()     {}
func (ClearAll) isCommand()       {}

// Result reports what a command did. Applied is false for no-ops on unknown
// targets; Room and Message carry copies of the affected records.
type Result struct {
	Applied bool
	Room    *models.ChatRoom
	Message *models.Message
}

// EventType names a store notification
type EventType string

const (
	EventRoomCreated     EventType = "chat.room_created"
	EventMessageAppended EventType = "chat.message_appended"
	EventMessageEdited   EventType = "chat.message_edited"
	EventMessageReacted  EventType = "chat.message_reacted"
	EventMessageDeleted  EventType = "chat.message_deleted"
	EventRoomDeleted     EventType = "chat.room_deleted"
	EventCleared         EventType = "chat.cleared"
	EventRestored        EventType = "chat.restored"
)

// Event is delivered to subscribers once per applied command
type Event struct {
	Type      EventType        `json:"type"`
	RoomID    string           `json:"room_id,omitempty"`
	MessageID string           `json:"message_id,omitempty"`
	Room      *models.ChatRoom `json:"room,omitempty"`
	Message   *models.Message  `json:"message,omitempty"`
}
