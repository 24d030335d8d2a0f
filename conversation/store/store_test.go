package store

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"pratham-chat/backend/conversation/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(WithIDGenerator(sequentialIDs()), WithClock(func() time.Time { return base }))
}

func newRoom(t *testing.T, s *Store) models.ChatRoom {
	t.Helper()
	room, created := s.CreateOrGetRoom("me", models.Participant{ID: "alice", FirstName: "Alice"}, "")
	require.True(t, created)
	return room
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestCreateOrGetRoom(t *testing.T) {
	s := newTestStore(t)

	first, created := s.CreateOrGetRoom("me", models.Participant{ID: "alice", FirstName: "Alice"}, "")
	require.True(t, created)

	second, created := s.CreateOrGetRoom("me", models.Participant{ID: "alice", FirstName: "Alice"}, "other text")
	assert.False(t, created)
	assert.Equal(t, first.RoomID, second.RoomID)

	assert.Len(t, s.Rooms(), 1)
	msgs := s.VisibleMessages(first.RoomID, 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi Alice, let's connect!", msgs[0].Text)
	assert.True(t, msgs[0].System)
	assert.Equal(t, "me", msgs[0].SenderID)
	assert.Equal(t, "Hi Alice, let's connect!", first.LastMessage.Text)
	assert.Equal(t, base, first.LastMessage.SentAt)
}

func TestCreateRoomWithOpeningText(t *testing.T) {
	s := newTestStore(t)

	room, _ := s.CreateOrGetRoom("me", models.Participant{ID: "bob", FirstName: "Bob"}, "hello bob")
	msgs := s.VisibleMessages(room.RoomID, 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello bob", msgs[0].Text)
	assert.Equal(t, "hello bob", room.LastMessage.Text)
}

func TestCreateRoomEventCarriesWelcome(t *testing.T) {
	s := newTestStore(t)

	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	room := newRoom(t, s)
	s.CreateOrGetRoom("me", models.Participant{ID: "alice"}, "")

	require.Len(t, events, 1)
	assert.Equal(t, EventRoomCreated, events[0].Type)
	require.NotNil(t, events[0].Room)
	require.NotNil(t, events[0].Message)
	assert.Equal(t, room.RoomID, events[0].Message.RoomID)
	assert.Equal(t, events[0].Message.Text, events[0].Room.LastMessage.Text)
}

func TestVisibleMessagesScenario(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)
	welcome := s.VisibleMessages(room.RoomID, 0)[0]

	ten := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	nine := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC).Add(-time.Minute)

	require.True(t, s.AppendMessage(room.RoomID, models.Message{ID: "m1", SentAt: ten, Text: "hi"}))
	require.True(t, s.AppendMessage(room.RoomID, models.Message{ID: "m2", SentAt: nine, Text: "yo"}))

	assert.Equal(t, []string{"m1", welcome.ID, "m2"}, ids(s.VisibleMessages(room.RoomID, 10)))

	got, ok := s.Room(room.RoomID)
	require.True(t, ok)
	assert.Equal(t, "yo", got.LastMessage.Text)
	assert.Equal(t, nine, got.LastMessage.SentAt)
}

func TestVisibleMessagesSortedRegardlessOfInsertion(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		sentAt := base.Add(time.Duration(r.Intn(10000)-5000) * time.Second)
		s.AppendMessage(room.RoomID, models.Message{ID: fmt.Sprintf("m%d", i), SentAt: sentAt, Text: "x"})
	}

	msgs := s.VisibleMessages(room.RoomID, 0)
	require.Len(t, msgs, 201)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].SentAt.After(msgs[i-1].SentAt), "message %d out of order", i)
	}
}

func TestVisibleMessagesTieKeepsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)
	later := base.Add(time.Hour)

	for _, id := range []string{"a", "b", "c"} {
		s.AppendMessage(room.RoomID, models.Message{ID: id, SentAt: later, Text: id})
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids(s.VisibleMessages(room.RoomID, 3)))
}

func TestVisibleMessagesLimitAndPaging(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)
	for i := 0; i < 60; i++ {
		s.AppendMessage(room.RoomID, models.Message{SentAt: base.Add(time.Duration(i+1) * time.Minute), Text: "x"})
	}
	total := s.MessageCount(room.RoomID)
	require.Equal(t, 61, total)

	limit := NextLimit(0, total)
	assert.Equal(t, PageSize, limit)
	assert.Len(t, s.VisibleMessages(room.RoomID, limit), 25)

	limit = NextLimit(limit, total)
	assert.Equal(t, 50, limit)

	limit = NextLimit(limit, total)
	assert.Equal(t, 61, limit)
	assert.Len(t, s.VisibleMessages(room.RoomID, limit), 61)

	assert.Equal(t, 61, NextLimit(limit, total))
}

func TestVisibleMessagesUnknownRoom(t *testing.T) {
	s := newTestStore(t)
	assert.Empty(t, s.VisibleMessages("nope", 25))
}

func TestVisibleMessagesReturnsCopies(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)
	s.AppendMessage(room.RoomID, models.Message{ID: "m1", SentAt: base.Add(time.Minute), Text: "hi"})

	msgs := s.VisibleMessages(room.RoomID, 1)
	msgs[0].Text = "changed"

	assert.Equal(t, "hi", s.VisibleMessages(room.RoomID, 1)[0].Text)
}

func TestAppendMessage(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)

	t.Run("unknown room is a no-op", func(t *testing.T) {
		assert.False(t, s.AppendMessage("missing", models.Message{Text: "hi"}))
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		require.True(t, s.AppendMessage(room.RoomID, models.Message{ID: "dup", Text: "one"}))
		assert.False(t, s.AppendMessage(room.RoomID, models.Message{ID: "dup", Text: "two"}))
		msg, ok := s.Message(room.RoomID, "dup")
		require.True(t, ok)
		assert.Equal(t, "one", msg.Text)
	})

	t.Run("audio summary", func(t *testing.T) {
		s.AppendMessage(room.RoomID, models.Message{
			Kind:  models.KindAudio,
			Audio: &models.AudioBody{URI: "file:///tmp/a.m4a", DurationMs: 1200},
		})
		got, _ := s.Room(room.RoomID)
		assert.Equal(t, models.AudioSummary, got.LastMessage.Text)
	})

	t.Run("missing fields are filled", func(t *testing.T) {
		res := s.Apply(SendMessage{RoomID: room.RoomID, Message: models.Message{Text: "hey"}})
		require.True(t, res.Applied)
		assert.NotEmpty(t, res.Message.ID)
		assert.Equal(t, models.KindText, res.Message.Kind)
		assert.Equal(t, base, res.Message.SentAt)
		assert.Equal(t, room.RoomID, res.Message.RoomID)
	})
}

func TestEditMessage(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)
	s.AppendMessage(room.RoomID, models.Message{ID: "t1", Text: "hello"})
	s.AppendMessage(room.RoomID, models.Message{ID: "a1", Kind: models.KindAudio, Audio: &models.AudioBody{URI: "u", DurationMs: 1500}})

	t.Run("edits text", func(t *testing.T) {
		require.True(t, s.EditMessage(room.RoomID, "t1", "hello there"))
		msg, _ := s.Message(room.RoomID, "t1")
		assert.Equal(t, "hello there", msg.Text)
		assert.True(t, msg.Edited)
	})

	t.Run("unknown id leaves state untouched", func(t *testing.T) {
		before := s.Snapshot()
		assert.False(t, s.EditMessage(room.RoomID, "nope", "x"))
		assert.False(t, s.EditMessage("nope", "t1", "x"))
		assert.Equal(t, before, s.Snapshot())
	})

	t.Run("audio is not editable", func(t *testing.T) {
		assert.False(t, s.EditMessage(room.RoomID, "a1", "x"))
		msg, _ := s.Message(room.RoomID, "a1")
		assert.False(t, msg.Edited)
		assert.Empty(t, msg.Text)
	})
}

func TestReactToMessage(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)
	s.AppendMessage(room.RoomID, models.Message{ID: "t1", Text: "hello"})

	require.True(t, s.ReactToMessage(room.RoomID, "t1", "👍"))
	require.True(t, s.ReactToMessage(room.RoomID, "t1", "❤️"))
	msg, _ := s.Message(room.RoomID, "t1")
	assert.Equal(t, "❤️", msg.Reaction)

	assert.False(t, s.ReactToMessage(room.RoomID, "nope", "👍"))
}

func TestDeleteMessageKeepsLastMessage(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)
	s.AppendMessage(room.RoomID, models.Message{ID: "t1", Text: "first", SentAt: base.Add(time.Minute)})
	s.AppendMessage(room.RoomID, models.Message{
		ID:      "t2",
		Text:    "second",
		SentAt:  base.Add(2 * time.Minute),
		ReplyTo: &models.ReplySnapshot{ID: "t1", SenderID: "me", Text: "first"},
	})

	require.True(t, s.DeleteMessage(room.RoomID, "t2"))
	assert.NotContains(t, ids(s.VisibleMessages(room.RoomID, 0)), "t2")

	got, _ := s.Room(room.RoomID)
	assert.Equal(t, "second", got.LastMessage.Text)

	require.True(t, s.DeleteMessage(room.RoomID, "t1"))
	assert.False(t, s.DeleteMessage(room.RoomID, "t1"))
}

func TestDeleteMessageKeepsReplySnapshots(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)
	s.AppendMessage(room.RoomID, models.Message{ID: "t1", Text: "first"})
	s.AppendMessage(room.RoomID, models.Message{ID: "t2", Text: "reply", ReplyTo: &models.ReplySnapshot{ID: "t1", Text: "first"}})

	s.DeleteMessage(room.RoomID, "t1")

	msg, ok := s.Message(room.RoomID, "t2")
	require.True(t, ok)
	require.NotNil(t, msg.ReplyTo)
	assert.Equal(t, "first", msg.ReplyTo.Text)
}

func TestDeleteRoom(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)
	other, _ := s.CreateOrGetRoom("me", models.Participant{ID: "bob", FirstName: "Bob"}, "")

	require.True(t, s.DeleteRoom(room.RoomID))
	assert.False(t, s.DeleteRoom(room.RoomID))

	_, ok := s.Room(room.RoomID)
	assert.False(t, ok)
	assert.Empty(t, s.VisibleMessages(room.RoomID, 0))
	assert.Equal(t, 0, s.MessageCount(room.RoomID))

	rooms := s.Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, other.RoomID, rooms[0].RoomID)

	again, created := s.CreateOrGetRoom("me", models.Participant{ID: "alice", FirstName: "Alice"}, "")
	assert.True(t, created)
	assert.NotEqual(t, room.RoomID, again.RoomID)
}

func TestClearAll(t *testing.T) {
	s := newTestStore(t)
	newRoom(t, s)
	s.ClearAll()
	assert.Empty(t, s.Rooms())
}

func TestRoomsByRecency(t *testing.T) {
	s := newTestStore(t)
	a := newRoom(t, s)
	b, _ := s.CreateOrGetRoom("me", models.Participant{ID: "bob", FirstName: "Bob"}, "")

	s.AppendMessage(a.RoomID, models.Message{Text: "newer", SentAt: base.Add(time.Hour)})

	rooms := s.RoomsByRecency()
	require.Len(t, rooms, 2)
	assert.Equal(t, a.RoomID, rooms[0].RoomID)
	assert.Equal(t, b.RoomID, rooms[1].RoomID)

	found, ok := s.FindRoomByParticipant("bob")
	require.True(t, ok)
	assert.Equal(t, b.RoomID, found.RoomID)
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t)

	var got []EventType
	unsubscribe := s.Subscribe(func(ev Event) { got = append(got, ev.Type) })

	room := newRoom(t, s)
	s.AppendMessage(room.RoomID, models.Message{ID: "t1", Text: "hi"})
	s.EditMessage(room.RoomID, "t1", "hey")
	s.EditMessage(room.RoomID, "missing", "hey")
	s.ReactToMessage(room.RoomID, "t1", "👍")
	s.DeleteMessage(room.RoomID, "t1")
	s.DeleteRoom(room.RoomID)

	unsubscribe()
	s.ClearAll()

	assert.Equal(t, []EventType{
		EventRoomCreated,
		EventMessageAppended,
		EventMessageEdited,
		EventMessageReacted,
		EventMessageDeleted,
		EventRoomDeleted,
	}, got)
}

func TestSubscriberMayReadStore(t *testing.T) {
	s := newTestStore(t)

	var count int
	s.Subscribe(func(ev Event) {
		count = len(s.VisibleMessages(ev.RoomID, 0))
	})

	room := newRoom(t, s)
	s.AppendMessage(room.RoomID, models.Message{Text: "hi"})
	assert.Equal(t, 2, count)
}

func TestSnapshotRestore(t *testing.T) {
	s := newTestStore(t)
	room := newRoom(t, s)
	s.AppendMessage(room.RoomID, models.Message{ID: "t1", Text: "hi", SentAt: base.Add(time.Minute)})
	s.ReactToMessage(room.RoomID, "t1", "👍")

	snap := s.Snapshot()

	restored := newTestStore(t)
	var restoredEvents int
	restored.Subscribe(func(ev Event) {
		if ev.Type == EventRestored {
			restoredEvents++
		}
	})
	restored.Restore(snap)

	assert.Equal(t, 1, restoredEvents)
	assert.Equal(t, s.Rooms(), restored.Rooms())
	assert.Equal(t, s.VisibleMessages(room.RoomID, 0), restored.VisibleMessages(room.RoomID, 0))

	_, created := restored.CreateOrGetRoom("me", models.Participant{ID: "alice"}, "")
	assert.False(t, created)
}

func TestRestoreDropsDuplicates(t *testing.T) {
	s := newTestStore(t)
	room := models.ChatRoom{RoomID: "r1", Participant: models.Participant{ID: "p"}}
	s.Restore(models.Snapshot{
		Rooms: []models.ChatRoom{room, room},
		Messages: map[string][]models.Message{
			"r1":    {{ID: "m1", Text: "a"}, {ID: "m1", Text: "b"}},
			"ghost": {{ID: "m2"}},
		},
	})

	assert.Len(t, s.Rooms(), 1)
	msgs := s.VisibleMessages("r1", 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].Text)
	assert.Equal(t, 0, s.MessageCount("ghost"))
}

func TestConcurrentWriters(t *testing.T) {
	s := New()
	room, _ := s.CreateOrGetRoom("me", models.Participant{ID: "alice", FirstName: "Alice"}, "")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.AppendMessage(room.RoomID, models.Message{Text: "x"})
				s.VisibleMessages(room.RoomID, PageSize)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 401, s.MessageCount(room.RoomID))
}
