package store

import (
	"sort"

	"pratham-chat/backend/conversation/models"
)

// CreateOrGetRoom returns the room for participant, creating it with its
// welcome message when none exists. created reports whether a room was made.
func (s *Store) CreateOrGetRoom(requester string, participant models.Participant, openingText string) (models.ChatRoom, bool) {
	res := s.Apply(CreateRoom{Requester: requester, Participant: participant, OpeningText: openingText})
	return *res.Room, res.Applied
}

// AppendMessage appends msg to the room and refreshes its last message
func (s *Store) AppendMessage(roomID string, msg models.Message) bool {
	return s.Apply(SendMessage{RoomID: roomID, Message: msg}).Applied
}

// EditMessage replaces the text of a text message
func (s *Store) EditMessage(roomID, messageID, text string) bool {
	return s.Apply(EditMessage{RoomID: roomID, MessageID: messageID, Text: text}).Applied
}

// ReactToMessage sets the reaction slot of a message
func (s *Store) ReactToMessage(roomID, messageID, reaction string) bool {
	return s.Apply(ReactToMessage{RoomID: roomID, MessageID: messageID, Reaction: reaction}).Applied
}

// DeleteMessage removes a message without touching the room's last message
func (s *Store) DeleteMessage(roomID, messageID string) bool {
	return s.Apply(DeleteMessage{RoomID: roomID, MessageID: messageID}).Applied
}

// DeleteRoom removes a room together with its messages
func (s *Store) DeleteRoom(roomID string) bool {
	return s.Apply(DeleteRoom{RoomID: roomID}).Applied
}

// ClearAll drops every room
func (s *Store) ClearAll() {
	s.Apply(ClearAll{})
}

// Rooms returns all rooms in creation order
func (s *Store) Rooms() []models.ChatRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]models.ChatRoom, 0, len(s.order))
	for _, id := range s.order {
		rooms = append(rooms, *s.rooms[id])
	}
	return rooms
}

// RoomsByRecency returns all rooms, most recent last message first
func (s *Store) RoomsByRecency() []models.ChatRoom {
	rooms := s.Rooms()
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].LastMessage.SentAt.After(rooms[j].LastMessage.SentAt)
	})
	return rooms
}

// Room looks up a room by id
func (s *Store) Room(roomID string) (models.ChatRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return models.ChatRoom{}, false
	}
	return *room, true
}

// FindRoomByParticipant looks up the room held with participantID
func (s *Store) FindRoomByParticipant(participantID string) (models.ChatRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room := s.roomByParticipant(participantID)
	if room == nil {
		return models.ChatRoom{}, false
	}
	return *room, true
}

// Message looks up a single message
func (s *Store) Message(roomID, messageID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, idx := s.find(roomID, messageID)
	if idx < 0 {
		return models.Message{}, false
	}
	return msgs[idx].Clone(), true
}

// MessageCount returns how many messages a room holds
func (s *Store) MessageCount(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[roomID])
}

// VisibleMessages returns the room's messages newest first, truncated to
// limit. A limit of zero or less returns every message. Messages with equal
// SentAt keep their insertion order.
func (s *Store) VisibleMessages(roomID string, limit int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.rooms[roomID]; !ok {
		return []models.Message{}
	}

	sorted, ok := s.views.Get(roomID)
	if !ok {
		sorted = make([]models.Message, len(s.messages[roomID]))
		copy(sorted, s.messages[roomID])
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].SentAt.After(sorted[j].SentAt)
		})
		s.views.Set(roomID, sorted)
	}

	n := len(sorted)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Message, n)
	for i := 0; i < n; i++ {
		out[i] = sorted[i].Clone()
	}
	return out
}

// Snapshot returns a deep copy of the whole chat state
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.Snapshot{
		Rooms:    make([]models.ChatRoom, 0, len(s.order)),
		Messages: make(map[string][]models.Message, len(s.messages)),
	}
	for _, id := range s.order {
		snap.Rooms = append(snap.Rooms, *s.rooms[id])
		msgs := make([]models.Message, len(s.messages[id]))
		for i, m := range s.messages[id] {
			msgs[i] = m.Clone()
		}
		snap.Messages[id] = msgs
	}
	return snap
}

// Restore replaces the chat state with snap. Rooms listed more than once and
// messages of unknown rooms are dropped.
func (s *Store) Restore(snap models.Snapshot) {
	s.mu.Lock()

	s.order = nil
	s.rooms = make(map[string]*models.ChatRoom, len(snap.Rooms))
	s.messages = make(map[string][]models.Message, len(snap.Rooms))
	for _, room := range snap.Rooms {
		if _, dup := s.rooms[room.RoomID]; dup || room.RoomID == "" {
			continue
		}
		r := room
		s.order = append(s.order, r.RoomID)
		s.rooms[r.RoomID] = &r

		seen := make(map[string]struct{})
		msgs := make([]models.Message, 0, len(snap.Messages[r.RoomID]))
		for _, m := range snap.Messages[r.RoomID] {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			m = m.Clone()
			m.RoomID = r.RoomID
			msgs = append(msgs, m)
		}
		s.messages[r.RoomID] = msgs
	}
	s.views.Flush()

	s.mu.Unlock()
	s.notify(Event{Type: EventRestored})
}
