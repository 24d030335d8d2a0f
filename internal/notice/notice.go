// Package notice keeps the short-lived user-facing messages (toasts) raised
// by failed chat and audio operations and by a few confirmed actions
package notice

import (
	stderrors "errors"
	"sync"
	"time"

	"pratham-chat/backend/internal/scope"
	"pratham-chat/backend/pkg/errors"

	"github.com/google/uuid"
)

// DefaultTTL is how long a notice stays visible
const DefaultTTL = 2 * time.Second

// CodeMessageDeleted confirms a message removed from a chat screen
const CodeMessageDeleted = "MESSAGE_DELETED"

// Notice is a message shown to the user
type Notice struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EventType distinguishes posted and dismissed notices
type EventType string

const (
	EventPosted    EventType = "notice"
	EventDismissed EventType = "notice.dismissed"
)

// Event reports a change of the board
type Event struct {
	Type   EventType `json:"type"`
	Notice Notice    `json:"notice"`
}

// Board holds the active notices of one scope. Notices are dismissed after
// the TTL unless dismissed earlier; closing the scope drops pending timers.
type Board struct {
	scope    *scope.Scope
	ttl      time.Duration
	onChange func(Event)

	mu     sync.Mutex
	active map[string]Notice
	order  []string
	stops  map[string]func() bool
}

// NewBoard creates a board whose timers live in sc. onChange may be nil.
func NewBoard(sc *scope.Scope, ttl time.Duration, onChange func(Event)) *Board {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Board{
		scope:    sc,
		ttl:      ttl,
		onChange: onChange,
		active:   make(map[string]Notice),
		stops:    make(map[string]func() bool),
	}
}

// Post shows a notice and schedules its dismissal
func (b *Board) Post(code, message string) Notice {
	now := time.Now()
	n := Notice{
		ID:        uuid.New().String(),
		Code:      code,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}

	b.mu.Lock()
	b.active[n.ID] = n
	b.order = append(b.order, n.ID)
	b.stops[n.ID] = b.scope.AfterFunc(b.ttl, func() { b.dismiss(n.ID, false) })
	b.mu.Unlock()

	b.emit(Event{Type: EventPosted, Notice: n})
	return n
}

// PostError posts a notice for errors the user should see. Missing rooms or
// messages are not reported; neither are errors outside the domain taxonomy.
func (b *Board) PostError(err error) (Notice, bool) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return Notice{}, false
	}
	switch appErr.Code {
	case errors.CodeValidationFailed, errors.CodeIOFailure:
		return b.Post(appErr.Code, appErr.Message), true
	default:
		return Notice{}, false
	}
}

// Dismiss removes a notice before its TTL runs out
func (b *Board) Dismiss(id string) bool {
	return b.dismiss(id, true)
}

func (b *Board) dismiss(id string, stopTimer bool) bool {
	b.mu.Lock()
	n, ok := b.active[id]
	if !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.active, id)
	stop := b.stops[id]
	delete(b.stops, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	if stopTimer && stop != nil {
		stop()
	}
	b.emit(Event{Type: EventDismissed, Notice: n})
	return true
}

// Active returns the visible notices, oldest first
func (b *Board) Active() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Notice, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.active[id])
	}
	return out
}

func (b *Board) emit(ev Event) {
	if b.onChange != nil {
		b.onChange(ev)
	}
}
