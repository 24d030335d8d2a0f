package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "pratham-chat/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIO struct {
	mu       sync.Mutex
	calls    []string
	recorder PositionFunc
	player   PositionFunc

	failStartRecorder error
	failStartPlayer   error
	failSeek          error
	failStopPlayer    error
}

func (f *fakeIO) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeIO) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeIO) StartRecorder(_ context.Context, onPosition PositionFunc) (string, error) {
	f.record("start_recorder")
	if f.failStartRecorder != nil {
		return "", f.failStartRecorder
	}
	f.recorder = onPosition
	return "file:///tmp/rec.m4a", nil
}

func (f *fakeIO) StopRecorder(context.Context) (string, error) {
	f.record("stop_recorder")
	return "file:///tmp/rec.m4a", nil
}

func (f *fakeIO) StartPlayer(_ context.Context, uri string, offsetMs int64, onPosition PositionFunc) error {
	f.record("start_player:" + uri)
	if f.failStartPlayer != nil {
		return f.failStartPlayer
	}
	f.player = onPosition
	return nil
}

func (f *fakeIO) SeekPlayer(context.Context, int64) error {
	f.record("seek_player")
	return f.failSeek
}

func (f *fakeIO) StopPlayer(context.Context) error {
	f.record("stop_player")
	return f.failStopPlayer
}

func newSession(t *testing.T) (*Session, *fakeIO) {
	t.Helper()
	io := &fakeIO{}
	return New(io, Options{}), io
}

func TestStopRecordingTooShort(t *testing.T) {
	ctx := context.Background()
	s, io := newSession(t)

	require.NoError(t, s.StartRecording(ctx))
	assert.Equal(t, StateRecording, s.Progress().State)

	io.recorder(900)
	assert.Equal(t, int64(900), s.Progress().ElapsedMs)

	payload, err := s.StopRecording(ctx)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, Payload{}, payload)
	assert.Equal(t, StateIdle, s.Progress().State)
	assert.Equal(t, []string{"start_recorder", "stop_recorder"}, io.Calls())
}

func TestStopRecordingProducesPayload(t *testing.T) {
	ctx := context.Background()
	s, io := newSession(t)

	require.NoError(t, s.StartRecording(ctx))
	io.recorder(600)
	io.recorder(1200)

	payload, err := s.StopRecording(ctx)
	require.NoError(t, err)
	assert.Equal(t, Payload{URI: "file:///tmp/rec.m4a", DurationMs: 1200}, payload)
	assert.Equal(t, Progress{State: StateIdle}, s.Progress())
}

func TestStopRecordingWhenIdle(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.StopRecording(context.Background())
	assert.True(t, apperrors.IsValidation(err))
}

func TestStartRecordingTwice(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t)

	require.NoError(t, s.StartRecording(ctx))
	assert.True(t, apperrors.IsValidation(s.StartRecording(ctx)))
	assert.Equal(t, StateRecording, s.Progress().State)
}

func TestPlaybackAutoStops(t *testing.T) {
	ctx := context.Background()
	s, io := newSession(t)

	require.NoError(t, s.Play(ctx, "m1", "file:///a.m4a", 5000, 0))
	assert.Equal(t, Progress{State: StatePlaying, MessageID: "m1", DurationMs: 5000}, s.Progress())

	io.player(2500)
	assert.Equal(t, int64(2500), s.Progress().PositionMs)

	io.player(5000)
	assert.Equal(t, Progress{State: StateIdle}, s.Progress())
	assert.Equal(t, []string{"start_player:file:///a.m4a", "stop_player"}, io.Calls())
}

func TestPlayStopsPreviousStreamFirst(t *testing.T) {
	ctx := context.Background()
	s, io := newSession(t)

	require.NoError(t, s.Play(ctx, "A", "uri-a", 5000, 0))
	stale := io.player
	require.NoError(t, s.Play(ctx, "B", "uri-b", 3000, 0))

	assert.Equal(t, []string{"start_player:uri-a", "stop_player", "start_player:uri-b"}, io.Calls())
	p := s.Progress()
	assert.Equal(t, StatePlaying, p.State)
	assert.Equal(t, "B", p.MessageID)

	stale(5000)
	assert.Equal(t, StatePlaying, s.Progress().State, "callback from the stopped stream must be ignored")
	assert.Equal(t, "B", s.Progress().MessageID)
}

func TestPlayWhileRecording(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t)

	require.NoError(t, s.StartRecording(ctx))
	err := s.Play(ctx, "m1", "uri", 1000, 0)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, StateRecording, s.Progress().State)
}

func TestStartRecordingStopsPlayback(t *testing.T) {
	ctx := context.Background()
	s, io := newSession(t)

	require.NoError(t, s.Play(ctx, "m1", "uri", 4000, 0))
	require.NoError(t, s.StartRecording(ctx))
	assert.Equal(t, []string{"start_player:uri", "stop_player", "start_recorder"}, io.Calls())
	assert.Equal(t, StateRecording, s.Progress().State)
}

func TestStopResetsPosition(t *testing.T) {
	ctx := context.Background()
	s, io := newSession(t)

	require.NoError(t, s.Stop(ctx), "stop while idle is a no-op")
	assert.Empty(t, io.Calls())

	require.NoError(t, s.Play(ctx, "m1", "uri", 4000, 1000))
	io.player(1500)
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, Progress{State: StateIdle}, s.Progress())
}

func TestSeek(t *testing.T) {
	ctx := context.Background()
	s, io := newSession(t)

	require.NoError(t, s.Seek(ctx, 1000))
	assert.Empty(t, io.Calls(), "seek while idle is a no-op")

	require.NoError(t, s.Play(ctx, "m1", "uri", 4000, 0))
	require.NoError(t, s.Seek(ctx, 2500))
	assert.Equal(t, int64(2500), s.Progress().PositionMs)

	require.NoError(t, s.Seek(ctx, 9000))
	assert.Equal(t, int64(4000), s.Progress().PositionMs)

	require.NoError(t, s.Seek(ctx, -5))
	assert.Equal(t, int64(0), s.Progress().PositionMs)
}

func TestPlayClampsOffset(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.Play(context.Background(), "m1", "uri", 2000, 5000))
	assert.Equal(t, int64(2000), s.Progress().PositionMs)
}

func TestIOFailuresRevertToIdle(t *testing.T) {
	ctx := context.Background()
	deviceBusy := errors.New("device busy")

	t.Run("start recorder", func(t *testing.T) {
		s, io := newSession(t)
		io.failStartRecorder = deviceBusy

		err := s.StartRecording(ctx)
		assert.True(t, apperrors.IsIOFailure(err))
		assert.ErrorIs(t, err, deviceBusy)
		assert.Equal(t, StateIdle, s.Progress().State)
	})

	t.Run("start player", func(t *testing.T) {
		s, io := newSession(t)
		io.failStartPlayer = deviceBusy

		assert.True(t, apperrors.IsIOFailure(s.Play(ctx, "m1", "uri", 1000, 0)))
		assert.Equal(t, StateIdle, s.Progress().State)
	})

	t.Run("seek", func(t *testing.T) {
		s, io := newSession(t)
		require.NoError(t, s.Play(ctx, "m1", "uri", 3000, 0))
		io.failSeek = deviceBusy

		assert.True(t, apperrors.IsIOFailure(s.Seek(ctx, 100)))
		assert.Equal(t, StateIdle, s.Progress().State)
	})

	t.Run("stop player", func(t *testing.T) {
		s, io := newSession(t)
		require.NoError(t, s.Play(ctx, "m1", "uri", 3000, 0))
		io.failStopPlayer = deviceBusy

		assert.True(t, apperrors.IsIOFailure(s.Stop(ctx)))
		assert.Equal(t, StateIdle, s.Progress().State)
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("discards recording", func(t *testing.T) {
		s, io := newSession(t)
		require.NoError(t, s.StartRecording(ctx))
		io.recorder(3000)

		require.NoError(t, s.Release(ctx))
		assert.Equal(t, Progress{State: StateIdle}, s.Progress())
		assert.Equal(t, []string{"start_recorder", "stop_recorder"}, io.Calls())

		io.recorder(4000)
		assert.Equal(t, int64(0), s.Progress().ElapsedMs)
	})

	t.Run("stops playback", func(t *testing.T) {
		s, io := newSession(t)
		require.NoError(t, s.Play(ctx, "m1", "uri", 3000, 0))

		require.NoError(t, s.Release(ctx))
		assert.Equal(t, StateIdle, s.Progress().State)
		assert.Equal(t, []string{"start_player:uri", "stop_player"}, io.Calls())
	})

	t.Run("idle", func(t *testing.T) {
		s, io := newSession(t)
		require.NoError(t, s.Release(ctx))
		assert.Empty(t, io.Calls())
	})
}

func TestSubscribeAndTransitions(t *testing.T) {
	ctx := context.Background()
	io := &fakeIO{}

	var transitions [][2]State
	s := New(io, Options{OnTransition: func(from, to State) {
		transitions = append(transitions, [2]State{from, to})
	}})

	var seen []Progress
	unsubscribe := s.Subscribe(func(p Progress) { seen = append(seen, p) })

	require.NoError(t, s.Play(ctx, "m1", "uri", 2000, 0))
	io.player(1000)
	io.player(2000)
	unsubscribe()
	require.NoError(t, s.Play(ctx, "m1", "uri", 2000, 0))

	require.Len(t, seen, 3)
	assert.Equal(t, StatePlaying, seen[0].State)
	assert.Equal(t, int64(1000), seen[1].PositionMs)
	assert.Equal(t, StateIdle, seen[2].State)

	assert.Equal(t, [][2]State{
		{StateIdle, StatePlaying},
		{StatePlaying, StateIdle},
		{StateIdle, StatePlaying},
	}, transitions)
}

func TestMinRecordingOption(t *testing.T) {
	ctx := context.Background()
	io := &fakeIO{}
	s := New(io, Options{MinRecording: 2 * time.Second})

	require.NoError(t, s.StartRecording(ctx))
	io.recorder(1500)
	_, err := s.StopRecording(ctx)
	assert.True(t, apperrors.IsValidation(err))
}
