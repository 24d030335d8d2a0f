package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"pratham-chat/backend/conversation/models"
	"pratham-chat/backend/conversation/store"
	"pratham-chat/backend/pkg/errors"
	"pratham-chat/backend/pkg/logger"
	"pratham-chat/backend/pkg/persist"
	"pratham-chat/backend/shared/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Slice is the persisted name of the chat state
const Slice = "chat"

// Options wires the collaborators of a ChatService. Every field is optional.
type Options struct {
	Persistor *persist.Persistor
	Metrics   *observability.Metrics
	Logger    *logger.Logger
	// WelcomeMessage overrides the default room greeting; "{first_name}" is
	// replaced with the participant's first name
	WelcomeMessage string
}

// ChatService validates user input and drives the chat store. It also keeps
// the persisted snapshot in step with the store.
type ChatService struct {
	store     *store.Store
	persistor *persist.Persistor
	metrics   *observability.Metrics
	log       *logger.Logger
	tracer    trace.Tracer
	welcome   string

	persistMu   sync.Mutex
	unsubscribe func()
}

func NewChatService(st *store.Store, opts Options) *ChatService {
	return &ChatService{
		store:     st,
		persistor: opts.Persistor,
		metrics:   opts.Metrics,
		log:       logger.Or(opts.Logger),
		tracer:    otel.Tracer("pratham-chat/conversation"),
		welcome:   opts.WelcomeMessage,
	}
}

// Init restores the persisted chat state and starts writing every change
// back. It must be called once before the service is used.
func (s *ChatService) Init(ctx context.Context) error {
	if s.persistor == nil {
		return nil
	}
	if !s.persistor.Allowed(Slice) {
		s.log.Info("Chat state is not whitelisted for persistence, keeping it in memory only", "slice", Slice)
		return nil
	}

	var snap models.Snapshot
	found, err := s.persistor.Load(ctx, Slice, &snap)
	if err != nil {
		return err
	}
	if found {
		s.store.Restore(snap)
		s.log.Info("Restored chat state", "rooms", len(snap.Rooms))
	}

	s.unsubscribe = s.store.Subscribe(func(ev store.Event) {
		if ev.Type == store.EventRestored {
			return
		}
		s.persist(context.Background())
	})
	return nil
}

// Close stops persisting store changes
func (s *ChatService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// persist writes the current snapshot. The snapshot is taken under
// persistMu so the last write always carries the latest state.
func (s *ChatService) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	start := time.Now()
	err := s.persistor.Save(ctx, Slice, s.store.Snapshot())
	s.metrics.PersistWrite(ctx, time.Since(start), err)
	if err != nil {
		s.log.LogError(err, "Failed to persist chat state")
	}
}

// Subscribe forwards store events to fn
func (s *ChatService) Subscribe(fn func(store.Event)) func() {
	return s.store.Subscribe(fn)
}

// Dispatch applies cmd to the store
func (s *ChatService) Dispatch(ctx context.Context, cmd store.Command) store.Result {
	_, span := s.tracer.Start(ctx, "chat."+cmd.Name())
	defer span.End()

	res := s.store.Apply(cmd)
	span.SetAttributes(attribute.Bool("chat.applied", res.Applied))
	s.metrics.Command(cmd.Name(), res.Applied)

	s.log.WithContext(ctx).Debug("Dispatched chat command", "command", cmd.Name(), "applied", res.Applied)
	return res
}

// CreateRoom opens a room with participant or returns the existing one
func (s *ChatService) CreateRoom(ctx context.Context, requester string, participant models.Participant, openingText string) (models.ChatRoom, error) {
	participant.ID = strings.TrimSpace(participant.ID)
	if participant.ID == "" {
		return models.ChatRoom{}, errors.ValidationFailed("Participant is required")
	}
	if participant.ID == requester {
		return models.ChatRoom{}, errors.ValidationFailed("Cannot open a chat with yourself")
	}

	openingText = strings.TrimSpace(openingText)
	if openingText == "" && s.welcome != "" {
		openingText = strings.ReplaceAll(s.welcome, "{first_name}", participant.FirstName)
	}

	res := s.Dispatch(ctx, store.CreateRoom{Requester: requester, Participant: participant, OpeningText: openingText})
	return *res.Room, nil
}

// SendText appends a text message. replyToID may be empty; a reply to a
// message that no longer exists is sent without a snapshot.
func (s *ChatService) SendText(ctx context.Context, roomID, senderID, text, replyToID string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, errors.ValidationFailed("Message cannot be empty")
	}
	if _, ok := s.store.Room(roomID); !ok {
		return models.Message{}, errors.NotFound("Room not found")
	}

	msg := models.Message{SenderID: senderID, Kind: models.KindText, Text: text}
	if replyToID != "" {
		if target, ok := s.store.Message(roomID, replyToID); ok {
			msg.ReplyTo = target.Snapshot()
		}
	}
	return s.send(ctx, roomID, msg)
}

// SendAudio appends an audio message referencing a recorded clip
func (s *ChatService) SendAudio(ctx context.Context, roomID, senderID string, body models.AudioBody) (models.Message, error) {
	if body.URI == "" {
		return models.Message{}, errors.ValidationFailed("Audio message has no recording")
	}
	if _, ok := s.store.Room(roomID); !ok {
		return models.Message{}, errors.NotFound("Room not found")
	}
	return s.send(ctx, roomID, models.Message{SenderID: senderID, Kind: models.KindAudio, Audio: &body})
}

func (s *ChatService) send(ctx context.Context, roomID string, msg models.Message) (models.Message, error) {
	res := s.Dispatch(ctx, store.SendMessage{RoomID: roomID, Message: msg})
	if !res.Applied {
		// the room was deleted between the lookup and the append
		return models.Message{}, errors.NotFound("Room not found")
	}
	return *res.Message, nil
}

// Edit replaces the text of a text message
func (s *ChatService) Edit(ctx context.Context, roomID, messageID, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, errors.ValidationFailed("Message cannot be empty")
	}
	res := s.Dispatch(ctx, store.EditMessage{RoomID: roomID, MessageID: messageID, Text: text})
	if !res.Applied {
		return models.Message{}, errors.NotFound("Message not found")
	}
	return *res.Message, nil
}

// React sets or clears the reaction of a message
func (s *ChatService) React(ctx context.Context, roomID, messageID, reaction string) (models.Message, error) {
	res := s.Dispatch(ctx, store.ReactToMessage{RoomID: roomID, MessageID: messageID, Reaction: reaction})
	if !res.Applied {
		return models.Message{}, errors.NotFound("Message not found")
	}
	return *res.Message, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	if !s.Dispatch(ctx, store.DeleteMessage{RoomID: roomID, MessageID: messageID}).Applied {
		return errors.NotFound("Message not found")
	}
	return nil
}

func (s *ChatService) DeleteRoom(ctx context.Context, roomID string) error {
	if !s.Dispatch(ctx, store.DeleteRoom{RoomID: roomID}).Applied {
		return errors.NotFound("Room not found")
	}
	return nil
}

func (s *ChatService) ClearAll(ctx context.Context) {
	s.Dispatch(ctx, store.ClearAll{})
}

// Rooms returns the chat list, most recent conversation first
func (s *ChatService) Rooms(ctx context.Context) []models.ChatRoom {
	return s.store.RoomsByRecency()
}

func (s *ChatService) Room(ctx context.Context, roomID string) (models.ChatRoom, error) {
	room, ok := s.store.Room(roomID)
	if !ok {
		return models.ChatRoom{}, errors.NotFound("Room not found")
	}
	return room, nil
}

func (s *ChatService) Message(ctx context.Context, roomID, messageID string) (models.Message, error) {
	msg, ok := s.store.Message(roomID, messageID)
	if !ok {
		return models.Message{}, errors.NotFound("Message not found")
	}
	return msg, nil
}

// VisibleMessages returns up to limit messages newest first together with
// the total number of messages in the room
func (s *ChatService) VisibleMessages(ctx context.Context, roomID string, limit int) ([]models.Message, int, error) {
	if _, ok := s.store.Room(roomID); !ok {
		return nil, 0, errors.NotFound("Room not found")
	}
	return s.store.VisibleMessages(roomID, limit), s.store.MessageCount(roomID), nil
}
