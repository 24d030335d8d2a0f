package service

import (
	"context"
	"sync"
	"testing"

	"pratham-chat/backend/audio/repository"
	"pratham-chat/backend/audio/session"
	chatmodels "pratham-chat/backend/conversation/models"
	chatservice "pratham-chat/backend/conversation/service"
	"pratham-chat/backend/conversation/store"
	"pratham-chat/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubIO hands position callbacks back to the test
type stubIO struct {
	mu       sync.Mutex
	recorder session.PositionFunc
	player   session.PositionFunc
	playing  string
	stops    int
}

func (f *stubIO) StartRecorder(_ context.Context, onPosition session.PositionFunc) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorder = onPosition
	return "file:///data/audio/clip.m4a", nil
}

func (f *stubIO) StopRecorder(context.Context) (string, error) {
	return "file:///data/audio/clip.m4a", nil
}

func (f *stubIO) StartPlayer(_ context.Context, uri string, _ int64, onPosition session.PositionFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.player = onPosition
	f.playing = uri
	return nil
}

func (f *stubIO) SeekPlayer(context.Context, int64) error { return nil }

func (f *stubIO) StopPlayer(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.playing = ""
	return nil
}

type fixture struct {
	audio *AudioService
	chat  *chatservice.ChatService
	repo  *repository.MemoryAudioRepository
	io    *stubIO
	room  chatmodels.ChatRoom
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	chat := chatservice.NewChatService(store.New(), chatservice.Options{})
	io := &stubIO{}
	repo := repository.NewMemoryAudioRepository()
	audio := NewAudioService(session.New(io, session.Options{}), chat, repo, nil)
	t.Cleanup(func() { audio.Close(ctx) })

	room, err := chat.CreateRoom(ctx, "me", chatmodels.Participant{ID: "alice", FirstName: "Alice"}, "")
	require.NoError(t, err)

	return &fixture{audio: audio, chat: chat, repo: repo, io: io, room: room}
}

func (f *fixture) record(t *testing.T, ms int64) chatmodels.Message {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.audio.StartRecording(ctx, f.room.RoomID))
	f.io.recorder(ms)
	msg, err := f.audio.StopRecording(ctx, f.room.RoomID, "me")
	require.NoError(t, err)
	return msg
}

func TestRecordingBecomesAudioMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	msg := f.record(t, 1200)
	assert.Equal(t, chatmodels.KindAudio, msg.Kind)
	require.NotNil(t, msg.Audio)
	assert.Equal(t, int64(1200), msg.Audio.DurationMs)

	room, err := f.chat.Room(ctx, f.room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, chatmodels.AudioSummary, room.LastMessage.Text)

	recs, err := f.audio.Recordings(ctx, f.room.RoomID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, msg.ID, recs[0].MessageID)
}

func TestShortRecordingSendsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.audio.StartRecording(ctx, f.room.RoomID))
	f.io.recorder(900)
	_, err := f.audio.StopRecording(ctx, f.room.RoomID, "me")
	assert.True(t, errors.IsValidation(err))

	_, total, err := f.chat.VisibleMessages(ctx, f.room.RoomID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRecordingUnknownRoom(t *testing.T) {
	f := newFixture(t)
	assert.True(t, errors.IsNotFound(f.audio.StartRecording(context.Background(), "missing")))
	assert.Equal(t, session.StateIdle, f.audio.Progress().State)
}

func TestPlayAndSeek(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.record(t, 4000)

	require.NoError(t, f.audio.Seek(ctx, f.room.RoomID, msg.ID, 1500))
	p := f.audio.Progress()
	assert.Equal(t, session.StatePlaying, p.State, "seek while idle starts playback")
	assert.Equal(t, int64(1500), p.PositionMs)

	require.NoError(t, f.audio.Seek(ctx, f.room.RoomID, msg.ID, 3000))
	assert.Equal(t, int64(3000), f.audio.Progress().PositionMs)

	f.io.player(4000)
	assert.Equal(t, session.StateIdle, f.audio.Progress().State)
}

func TestPlayTextMessageIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	text, err := f.chat.SendText(ctx, f.room.RoomID, "me", "hi", "")
	require.NoError(t, err)

	assert.True(t, errors.IsNotFound(f.audio.Play(ctx, f.room.RoomID, text.ID, 0)))
	assert.True(t, errors.IsNotFound(f.audio.Play(ctx, f.room.RoomID, "missing", 0)))
}

func TestDeletingPlayingMessageStopsPlayback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.record(t, 4000)

	require.NoError(t, f.audio.Play(ctx, f.room.RoomID, msg.ID, 0))
	require.NoError(t, f.chat.DeleteMessage(ctx, f.room.RoomID, msg.ID))

	assert.Equal(t, session.StateIdle, f.audio.Progress().State)
	_, err := f.repo.GetByMessage(ctx, msg.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeletingRoomCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.record(t, 2000)

	require.NoError(t, f.audio.Play(ctx, f.room.RoomID, msg.ID, 0))
	require.NoError(t, f.chat.DeleteRoom(ctx, f.room.RoomID))

	assert.Equal(t, session.StateIdle, f.audio.Progress().State)
	recs, err := f.audio.Recordings(ctx, f.room.RoomID)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDeletingRoomWhileRecordingDiscards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.audio.StartRecording(ctx, f.room.RoomID))
	require.NoError(t, f.chat.DeleteRoom(ctx, f.room.RoomID))

	assert.Equal(t, session.StateIdle, f.audio.Progress().State)
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.record(t, 2000)

	require.NoError(t, f.audio.Play(ctx, f.room.RoomID, msg.ID, 0))
	require.NoError(t, f.audio.Release(ctx))
	assert.Equal(t, session.StateIdle, f.audio.Progress().State)
	assert.Empty(t, f.io.playing)
}

func TestReleaseRoomLeavesOtherRoomsAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other, err := f.chat.CreateRoom(ctx, "me", chatmodels.Participant{ID: "bob", FirstName: "Bob"}, "")
	require.NoError(t, err)

	require.NoError(t, f.audio.StartRecording(ctx, f.room.RoomID))
	require.NoError(t, f.audio.ReleaseRoom(ctx, other.RoomID))
	assert.Equal(t, session.StateRecording, f.audio.Progress().State)

	require.NoError(t, f.audio.ReleaseRoom(ctx, f.room.RoomID))
	assert.Equal(t, session.StateIdle, f.audio.Progress().State)
}
