package ws

import (
	"context"
	"sync"
	"sync/atomic"

	"pratham-chat/backend/audio/session"
	chatmodels "pratham-chat/backend/conversation/models"
	"pratham-chat/backend/conversation/store"
	"pratham-chat/backend/pkg/logger"
	"pratham-chat/backend/shared/observability"
)

// ChatService is what a chat screen needs from the chat core
type ChatService interface {
	Subscribe(fn func(store.Event)) func()
	Room(ctx context.Context, roomID string) (chatmodels.ChatRoom, error)
	SendText(ctx context.Context, roomID, senderID, text, replyToID string) (chatmodels.Message, error)
	DeleteMessage(ctx context.Context, roomID, messageID string) error
}

// AudioService is what a chat screen needs from the audio core
type AudioService interface {
	Subscribe(fn func(session.Progress)) func()
	Progress() session.Progress
	StartRecording(ctx context.Context, roomID string) error
	StopRecording(ctx context.Context, roomID, senderID string) (chatmodels.Message, error)
	Play(ctx context.Context, roomID, messageID string, offsetMs int64) error
	Seek(ctx context.Context, roomID, messageID string, offsetMs int64) error
	Stop(ctx context.Context) error
	ReleaseRoom(ctx context.Context, roomID string) error
}

type envelope struct {
	// roomID limits delivery to clients of one room; empty means everyone
	roomID string
	// client limits delivery to one connection
	client *Client
	data   []byte
}

// Hub fans chat, audio and notice events out to the open chat screens. All
// writes to client send buffers happen on the Run goroutine.
type Hub struct {
	chat    ChatService
	audio   AudioService
	log     *logger.Logger
	metrics *observability.Metrics

	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	count atomic.Int64

	mu          sync.Mutex
	running     bool
	unsubscribe []func()
}

func NewHub(chat ChatService, audio AudioService, log *logger.Logger) *Hub {
	return &Hub{
		chat:       chat,
		audio:      audio,
		log:        logger.Or(log),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// WithMetrics counts the notices posted to screens
func (h *Hub) WithMetrics(m *observability.Metrics) *Hub {
	h.metrics = m
	return h
}

// Run delivers frames until ctx is canceled, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.unsubscribe = append(h.unsubscribe,
		h.chat.Subscribe(h.onChatEvent),
		h.audio.Subscribe(h.onProgress),
	)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		for _, unsub := range h.unsubscribe {
			unsub()
		}
		h.unsubscribe = nil
		h.mu.Unlock()

		close(h.done)
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.count.Store(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.log.Debug("WebSocket client registered", "client_id", client.id, "room_id", client.roomID)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.count.Store(int64(len(h.clients)))
				h.log.Debug("WebSocket client unregistered", "client_id", client.id)
			}

		case env := <-h.broadcast:
			for client := range h.clients {
				if env.client != nil && env.client != client {
					continue
				}
				if env.roomID != "" && env.roomID != client.roomID {
					continue
				}
				select {
				case client.send <- env.data:
				default:
					close(client.send)
					delete(h.clients, client)
					h.count.Store(int64(len(h.clients)))
					h.log.Warn("WebSocket client removed due to blocked channel", "client_id", client.id)
				}
			}
		}
	}
}

// ClientCount returns the number of connected screens
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

func (h *Hub) publish(env envelope) {
	select {
	case h.broadcast <- env:
	case <-h.done:
	}
}

func (h *Hub) onChatEvent(ev store.Event) {
	data, err := encode(string(ev.Type), ev)
	if err != nil {
		h.log.LogError(err, "Failed to encode chat event", "type", ev.Type)
		return
	}

	env := envelope{data: data}
	switch ev.Type {
	case store.EventCleared, store.EventRestored:
	default:
		env.roomID = ev.RoomID
	}
	h.publish(env)
}

func (h *Hub) onProgress(p session.Progress) {
	data, err := encode(TypeAudioProgress, p)
	if err != nil {
		h.log.LogError(err, "Failed to encode audio progress")
		return
	}
	h.publish(envelope{data: data})
}
