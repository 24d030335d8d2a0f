// Package session owns the single audio stream of the process. At any time
// it is idle, recording, or playing one message, and it enforces that a new
// stream only starts after the previous one was stopped.
package session

import (
	"context"
	"sync"
	"time"

	"pratham-chat/backend/pkg/errors"
	"pratham-chat/backend/pkg/logger"
)

// State of the session
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePlaying   State = "playing"
)

// DefaultMinRecording is the shortest recording that produces a payload
const DefaultMinRecording = time.Second

// PositionFunc receives the current position of a stream in milliseconds
type PositionFunc func(positionMs int64)

// AudioIO is the device the session drives. Position callbacks run on the
// device's own goroutines: they must not be invoked synchronously from these
// methods, and no method may wait for a running callback to return.
type AudioIO interface {
	StartRecorder(ctx context.Context, onPosition PositionFunc) (uri string, err error)
	StopRecorder(ctx context.Context) (uri string, err error)
	StartPlayer(ctx context.Context, uri string, offsetMs int64, onPosition PositionFunc) error
	SeekPlayer(ctx context.Context, offsetMs int64) error
	StopPlayer(ctx context.Context) error
}

// Payload is a finished recording
type Payload struct {
	URI        string `json:"uri"`
	DurationMs int64  `json:"duration_ms"`
}

// Progress is a snapshot of the session counters
type Progress struct {
	State      State  `json:"state"`
	MessageID  string `json:"message_id,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	PositionMs int64  `json:"position_ms"`
	DurationMs int64  `json:"duration_ms"`
}

// TransitionFunc observes state changes
type TransitionFunc func(from, to State)

// Options configures a Session
type Options struct {
	MinRecording time.Duration
	Logger       *logger.Logger
	OnTransition TransitionFunc
}

// Session is the recording/playback state machine
type Session struct {
	io           AudioIO
	minRecording int64
	log          *logger.Logger
	onTransition TransitionFunc

	mu         sync.Mutex
	state      State
	messageID  string
	uri        string
	elapsedMs  int64
	positionMs int64
	durationMs int64
	// generation identifies the active stream; callbacks from older streams are dropped
	generation uint64

	subsMu  sync.Mutex
	subs    map[int]func(Progress)
	nextSub int
}

func New(io AudioIO, opts Options) *Session {
	minRecording := opts.MinRecording
	if minRecording <= 0 {
		minRecording = DefaultMinRecording
	}
	return &Session{
		io:           io,
		minRecording: minRecording.Milliseconds(),
		log:          logger.Or(opts.Logger),
		onTransition: opts.OnTransition,
		state:        StateIdle,
		subs:         make(map[int]func(Progress)),
	}
}

// Progress returns the current counters
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() Progress {
	return Progress{
		State:      s.state,
		MessageID:  s.messageID,
		ElapsedMs:  s.elapsedMs,
		PositionMs: s.positionMs,
		DurationMs: s.durationMs,
	}
}

// Subscribe registers fn for progress changes and returns a function that
// removes it. fn is called without the session lock held.
func (s *Session) Subscribe(fn func(Progress)) func() {
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

func (s *Session) notify(p Progress) {
	s.subsMu.Lock()
	fns := make([]func(Progress), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// unlock releases the session lock and publishes the resulting progress
func (s *Session) unlock() {
	p := s.progressLocked()
	s.mu.Unlock()
	s.notify(p)
}

// setState must be called with the lock held
func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	if from != to && s.onTransition != nil {
		s.onTransition(from, to)
	}
}

// resetLocked returns to Idle and invalidates the current stream
func (s *Session) resetLocked() {
	s.generation++
	s.setState(StateIdle)
	s.messageID = ""
	s.uri = ""
	s.elapsedMs = 0
	s.positionMs = 0
	s.durationMs = 0
}

// StartRecording begins a capture. A running playback is stopped first.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()

	switch s.state {
	case StateRecording:
		return errors.ValidationFailed("Already recording")
	case StatePlaying:
		if err := s.stopPlayerLocked(ctx); err != nil {
			return err
		}
	}

	s.resetLocked()
	gen := s.generation
	uri, err := s.io.StartRecorder(ctx, func(ms int64) { s.onRecordPosition(gen, ms) })
	if err != nil {
		s.resetLocked()
		s.log.LogError(err, "Failed to start recorder")
		return errors.IOFailure("Could not start recording", err)
	}

	s.uri = uri
	s.setState(StateRecording)
	return nil
}

// StopRecording ends the capture. Recordings shorter than the minimum are
// discarded and reported as a validation failure.
func (s *Session) StopRecording(ctx context.Context) (Payload, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.state != StateRecording {
		return Payload{}, errors.ValidationFailed("Not recording")
	}

	elapsed := s.elapsedMs
	uri, err := s.io.StopRecorder(ctx)
	if uri == "" {
		uri = s.uri
	}
	s.resetLocked()

	if err != nil {
		s.log.LogError(err, "Failed to stop recorder")
		return Payload{}, errors.IOFailure("Could not stop recording", err)
	}
	if elapsed < s.minRecording {
		return Payload{}, errors.ValidationFailed("Recording is too short").
			WithDetails(map[string]int64{"elapsed_ms": elapsed, "min_ms": s.minRecording})
	}

	return Payload{URI: uri, DurationMs: elapsed}, nil
}

// Play starts playback of a message. Any running playback is stopped
// before the new stream starts.
func (s *Session) Play(ctx context.Context, messageID, uri string, durationMs, offsetMs int64) error {
	s.mu.Lock()
	defer s.unlock()

	switch s.state {
	case StateRecording:
		return errors.ValidationFailed("Cannot play while recording")
	case StatePlaying:
		if err := s.stopPlayerLocked(ctx); err != nil {
			return err
		}
	}

	offsetMs = clamp(offsetMs, 0, durationMs)

	s.resetLocked()
	gen := s.generation
	if err := s.io.StartPlayer(ctx, uri, offsetMs, func(ms int64) { s.onPlayPosition(gen, ms) }); err != nil {
		s.resetLocked()
		s.log.LogError(err, "Failed to start player", "message_id", messageID)
		return errors.IOFailure("Could not play audio", err)
	}

	s.messageID = messageID
	s.uri = uri
	s.durationMs = durationMs
	s.positionMs = offsetMs
	s.setState(StatePlaying)
	return nil
}

// Seek moves the playback position. It is a no-op unless playing.
func (s *Session) Seek(ctx context.Context, offsetMs int64) error {
	s.mu.Lock()
	defer s.unlock()

	if s.state != StatePlaying {
		return nil
	}

	offsetMs = clamp(offsetMs, 0, s.durationMs)
	if err := s.io.SeekPlayer(ctx, offsetMs); err != nil {
		s.log.LogError(err, "Failed to seek", "message_id", s.messageID)
		if stopErr := s.io.StopPlayer(ctx); stopErr != nil {
			s.log.LogError(stopErr, "Failed to stop player after seek failure")
		}
		s.resetLocked()
		return errors.IOFailure("Could not seek audio", err)
	}
	s.positionMs = offsetMs
	return nil
}

// Stop ends playback and resets the position. It is a no-op unless playing.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()

	if s.state != StatePlaying {
		return nil
	}
	return s.stopPlayerLocked(ctx)
}

// Release stops whatever stream is active. A capture in progress is discarded.
func (s *Session) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()

	switch s.state {
	case StatePlaying:
		return s.stopPlayerLocked(ctx)
	case StateRecording:
		_, err := s.io.StopRecorder(ctx)
		s.resetLocked()
		if err != nil {
			return errors.IOFailure("Could not stop recording", err)
		}
	}
	return nil
}

// stopPlayerLocked stops the device player and returns to Idle, even when
// the device reports an error
func (s *Session) stopPlayerLocked(ctx context.Context) error {
	err := s.io.StopPlayer(ctx)
	s.resetLocked()
	if err != nil {
		s.log.LogError(err, "Failed to stop player")
		return errors.IOFailure("Could not stop audio", err)
	}
	return nil
}

func (s *Session) onRecordPosition(gen uint64, ms int64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	s.elapsedMs = ms
	s.unlock()
}

func (s *Session) onPlayPosition(gen uint64, ms int64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StatePlaying {
		s.mu.Unlock()
		return
	}

	if ms < s.durationMs {
		s.positionMs = ms
		s.unlock()
		return
	}

	// playback complete
	if err := s.io.StopPlayer(context.Background()); err != nil {
		s.log.LogError(err, "Failed to stop finished player", "message_id", s.messageID)
	}
	s.resetLocked()
	s.unlock()
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if hi >= lo && v > hi {
		return hi
	}
	return v
}
