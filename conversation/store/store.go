// Package store holds the authoritative in-memory chat state: rooms in
// creation order and, per room, messages in insertion order. Display order is
// computed at read time.
package store

import (
	"fmt"
	"sync"
	"time"

	"pratham-chat/backend/conversation/models"
	"pratham-chat/backend/pkg/cache"

	"github.com/google/uuid"
)

// DefaultWelcome is used when a room is opened without an opening text
const DefaultWelcome = "Hi %s, let's connect!"

// Store is the chat state container. All mutations go through Apply, which
// holds the writer lock for the whole command, so a command's effects are
// observed together.
type Store struct {
	mu       sync.RWMutex
	order    []string
	rooms    map[string]*models.ChatRoom
	messages map[string][]models.Message

	views *cache.Cache[[]models.Message]

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	newID func() string
	clock func() time.Time
}

// Option customizes a Store
type Option func(*Store)

// WithIDGenerator overrides how room and message ids are minted
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithClock overrides the time source used for generated messages
func WithClock(f func() time.Time) Option {
	return func(s *Store) { s.clock = f }
}

// WithViewCache sets the cache used to memoize sorted message views
func WithViewCache(c *cache.Cache[[]models.Message]) Option {
	return func(s *Store) { s.views = c }
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		rooms:    make(map[string]*models.ChatRoom),
		messages: make(map[string][]models.Message),
		subs:     make(map[int]func(Event)),
		newID:    func() string { return uuid.New().String() },
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.views == nil {
		s.views = cache.New[[]models.Message](cache.Options{MaxItems: 256})
	}
	return s
}

// Subscribe registers fn for every applied command and returns a function
// that removes the subscription. fn runs after the writer lock is released.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	s.subsMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Apply runs cmd against the store and notifies subscribers if it changed anything
func (s *Store) Apply(cmd Command) Result {
	s.mu.Lock()
	res, ev := s.apply(cmd)
	s.mu.Unlock()

	if res.Applied {
		s.notify(ev)
	}
	return res
}

func (s *Store) apply(cmd Command) (Result, Event) {
	switch c := cmd.(type) {
	case CreateRoom:
		return s.createRoom(c)
	case SendMessage:
		return s.appendMessage(c)
	case EditMessage:
		return s.editMessage(c)
	case ReactToMessage:
		return s.react(c)
	case DeleteMessage:
		return s.deleteMessage(c)
	case DeleteRoom:
		return s.deleteRoom(c)
	case ClearAll:
		return s.clearAll()
	default:
		panic(fmt.Sprintf("store: unknown command %T", cmd))
	}
}

func (s *Store) createRoom(c CreateRoom) (Result, Event) {
	if room := s.roomByParticipant(c.Participant.ID); room != nil {
		r := *room
		return Result{Room: &r}, Event{}
	}

	now := s.clock()
	roomID := s.newID()

	text := c.OpeningText
	if text == "" {
		text = fmt.Sprintf(DefaultWelcome, c.Participant.FirstName)
	}

	welcome := models.Message{
		ID:       s.newID(),
		RoomID:   roomID,
		SenderID: c.Requester,
		Kind:     models.KindText,
		Text:     text,
		SentAt:   now,
		System:   true,
	}
	room := &models.ChatRoom{
		RoomID:      roomID,
		Participant: c.Participant,
		LastMessage: models.LastMessage{Text: welcome.Summary(), SentAt: welcome.SentAt},
		CreatedAt:   now,
	}

	s.order = append(s.order, roomID)
	s.rooms[roomID] = room
	s.messages[roomID] = []models.Message{welcome}

	r := *room
	m := welcome.Clone()
	return Result{Applied: true, Room: &r, Message: &m},
		Event{Type: EventRoomCreated, RoomID: roomID, MessageID: welcome.ID, Room: &r, Message: &m}
}

func (s *Store) appendMessage(c SendMessage) (Result, Event) {
	room, ok := s.rooms[c.RoomID]
	if !ok {
		return Result{}, Event{}
	}

	msg := c.Message.Clone()
	msg.RoomID = c.RoomID
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.Kind == "" {
		msg.Kind = models.KindText
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = s.clock()
	}
	if _, idx := s.find(c.RoomID, msg.ID); idx >= 0 {
		return Result{}, Event{}
	}

	s.messages[c.RoomID] = append(s.messages[c.RoomID], msg)
	room.LastMessage = models.LastMessage{Text: msg.Summary(), SentAt: msg.SentAt}
	s.views.Delete(c.RoomID)

	r := *room
	m := msg.Clone()
	return Result{Applied: true, Room: &r, Message: &m},
		Event{Type: EventMessageAppended, RoomID: c.RoomID, MessageID: msg.ID, Room: &r, Message: &m}
}

func (s *Store) editMessage(c EditMessage) (Result, Event) {
	msgs, idx := s.find(c.RoomID, c.MessageID)
	if idx < 0 || msgs[idx].Kind != models.KindText {
		return Result{}, Event{}
	}

	msgs[idx].Text = c.Text
	msgs[idx].Edited = true
	s.views.Delete(c.RoomID)

	m := msgs[idx].Clone()
	return Result{Applied: true, Message: &m},
		Event{Type: EventMessageEdited, RoomID: c.RoomID, MessageID: c.MessageID, Message: &m}
}

func (s *Store) react(c ReactToMessage) (Result, Event) {
	msgs, idx := s.find(c.RoomID, c.MessageID)
	if idx < 0 {
		return Result{}, Event{}
	}

	msgs[idx].Reaction = c.Reaction
	s.views.Delete(c.RoomID)

	m := msgs[idx].Clone()
	return Result{Applied: true, Message: &m},
		Event{Type: EventMessageReacted, RoomID: c.RoomID, MessageID: c.MessageID, Message: &m}
}

func (s *Store) deleteMessage(c DeleteMessage) (Result, Event) {
	msgs, idx := s.find(c.RoomID, c.MessageID)
	if idx < 0 {
		return Result{}, Event{}
	}

	m := msgs[idx].Clone()
	s.messages[c.RoomID] = append(msgs[:idx:idx], msgs[idx+1:]...)
	s.views.Delete(c.RoomID)

	return Result{Applied: true, Message: &m},
		Event{Type: EventMessageDeleted, RoomID: c.RoomID, MessageID: c.MessageID, Message: &m}
}

func (s *Store) deleteRoom(c DeleteRoom) (Result, Event) {
	room, ok := s.rooms[c.RoomID]
	if !ok {
		return Result{}, Event{}
	}

	delete(s.rooms, c.RoomID)
	delete(s.messages, c.RoomID)
	for i, id := range s.order {
		if id == c.RoomID {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	s.views.Delete(c.RoomID)

	r := *room
	return Result{Applied: true, Room: &r},
		Event{Type: EventRoomDeleted, RoomID: c.RoomID, Room: &r}
}

func (s *Store) clearAll() (Result, Event) {
	s.order = nil
	s.rooms = make(map[string]*models.ChatRoom)
	s.messages = make(map[string][]models.Message)
	s.views.Flush()
	return Result{Applied: true}, Event{Type: EventCleared}
}

// find returns the room's message slice and the index of messageID, or -1
func (s *Store) find(roomID, messageID string) ([]models.Message, int) {
	msgs := s.messages[roomID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			return msgs, i
		}
	}
	return msgs, -1
}

func (s *Store) roomByParticipant(participantID string) *models.ChatRoom {
	for _, id := range s.order {
		if room := s.rooms[id]; room.Participant.ID == participantID {
			return room
		}
	}
	return nil
}
