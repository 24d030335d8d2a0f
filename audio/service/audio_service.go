package service

import (
	"context"
	"sync"

	"pratham-chat/backend/audio/models"
	"pratham-chat/backend/audio/repository"
	"pratham-chat/backend/audio/session"
	chatmodels "pratham-chat/backend/conversation/models"
	chatservice "pratham-chat/backend/conversation/service"
	"pratham-chat/backend/conversation/store"
	"pratham-chat/backend/pkg/errors"
	"pratham-chat/backend/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AudioService connects the recording session to chat rooms: finished
// recordings become audio messages and audio messages can be played back.
type AudioService struct {
	session *session.Session
	chat    *chatservice.ChatService
	repo    repository.AudioRepository
	log     *logger.Logger
	tracer  trace.Tracer

	mu            sync.Mutex
	recordingRoom string
	playingRoom   string

	unsubscribe func()
}

func NewAudioService(sess *session.Session, chat *chatservice.ChatService, repo repository.AudioRepository, log *logger.Logger) *AudioService {
	s := &AudioService{
		session: sess,
		chat:    chat,
		repo:    repo,
		log:     logger.Or(log),
		tracer:  otel.Tracer("pratham-chat/audio"),
	}
	s.unsubscribe = chat.Subscribe(s.onChatEvent)
	return s
}

// Close stops following chat events and releases the audio stream
func (s *AudioService) Close(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return s.Release(ctx)
}

// StartRecording begins capturing a clip for roomID
func (s *AudioService) StartRecording(ctx context.Context, roomID string) error {
	ctx, span := s.tracer.Start(ctx, "audio.start_recording", trace.WithAttributes(attribute.String("room_id", roomID)))
	defer span.End()

	if _, err := s.chat.Room(ctx, roomID); err != nil {
		return err
	}
	if err := s.session.StartRecording(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.recordingRoom = roomID
	s.playingRoom = ""
	s.mu.Unlock()
	return nil
}

// StopRecording finishes the capture and sends it to roomID as an audio message
func (s *AudioService) StopRecording(ctx context.Context, roomID, senderID string) (chatmodels.Message, error) {
	ctx, span := s.tracer.Start(ctx, "audio.stop_recording", trace.WithAttributes(attribute.String("room_id", roomID)))
	defer span.End()

	s.mu.Lock()
	recordingRoom := s.recordingRoom
	s.mu.Unlock()
	if recordingRoom != "" && recordingRoom != roomID {
		return chatmodels.Message{}, errors.ValidationFailed("Recording belongs to another room")
	}

	payload, err := s.session.StopRecording(ctx)
	s.mu.Lock()
	s.recordingRoom = ""
	s.mu.Unlock()
	if err != nil {
		return chatmodels.Message{}, err
	}

	msg, err := s.chat.SendAudio(ctx, roomID, senderID, chatmodels.AudioBody{URI: payload.URI, DurationMs: payload.DurationMs})
	if err != nil {
		return chatmodels.Message{}, err
	}

	rec := &models.Recording{
		MessageID:  msg.ID,
		RoomID:     roomID,
		SenderID:   senderID,
		URI:        payload.URI,
		DurationMs: payload.DurationMs,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		s.log.WithContext(ctx).LogError(err, "Failed to catalog recording", "message_id", msg.ID)
	}

	span.SetAttributes(attribute.Int64("duration_ms", payload.DurationMs))
	return msg, nil
}

// Play starts playback of an audio message from offsetMs
func (s *AudioService) Play(ctx context.Context, roomID, messageID string, offsetMs int64) error {
	ctx, span := s.tracer.Start(ctx, "audio.play", trace.WithAttributes(
		attribute.String("room_id", roomID),
		attribute.String("message_id", messageID),
	))
	defer span.End()

	msg, err := s.chat.Message(ctx, roomID, messageID)
	if err != nil {
		return err
	}
	if msg.Kind != chatmodels.KindAudio || msg.Audio == nil {
		return errors.NotFound("Audio message not found")
	}

	if err := s.session.Play(ctx, msg.ID, msg.Audio.URI, msg.Audio.DurationMs, offsetMs); err != nil {
		return err
	}

	s.mu.Lock()
	s.playingRoom = roomID
	s.mu.Unlock()
	return nil
}

// Seek moves playback of messageID to offsetMs, starting it there when a
// different message (or nothing) is playing
func (s *AudioService) Seek(ctx context.Context, roomID, messageID string, offsetMs int64) error {
	p := s.session.Progress()
	if p.State == session.StatePlaying && p.MessageID == messageID {
		return s.session.Seek(ctx, offsetMs)
	}
	return s.Play(ctx, roomID, messageID, offsetMs)
}

func (s *AudioService) Stop(ctx context.Context) error {
	return s.session.Stop(ctx)
}

func (s *AudioService) Progress() session.Progress {
	return s.session.Progress()
}

func (s *AudioService) Subscribe(fn func(session.Progress)) func() {
	return s.session.Subscribe(fn)
}

// Recordings lists the cataloged clips of a room
func (s *AudioService) Recordings(ctx context.Context, roomID string) ([]models.Recording, error) {
	return s.repo.ListByRoom(ctx, roomID)
}

// Release stops any active stream; a capture in progress is discarded
func (s *AudioService) Release(ctx context.Context) error {
	s.mu.Lock()
	s.recordingRoom = ""
	s.playingRoom = ""
	s.mu.Unlock()
	return s.session.Release(ctx)
}

// ReleaseRoom releases the active stream only when it belongs to roomID.
// Streams started for other rooms are left running.
func (s *AudioService) ReleaseRoom(ctx context.Context, roomID string) error {
	if !s.ownsStream(roomID) {
		return nil
	}
	return s.Release(ctx)
}

func (s *AudioService) ownsStream(roomID string) bool {
	p := s.session.Progress()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch p.State {
	case session.StatePlaying:
		return s.playingRoom == roomID
	case session.StateRecording:
		return s.recordingRoom == roomID
	}
	return false
}

func (s *AudioService) onChatEvent(ev store.Event) {
	ctx := context.Background()
	p := s.session.Progress()

	switch ev.Type {
	case store.EventMessageDeleted:
		if p.State == session.StatePlaying && p.MessageID == ev.MessageID {
			s.stopQuietly(ctx)
		}
		if err := s.repo.DeleteByMessage(ctx, ev.MessageID); err != nil {
			s.log.LogError(err, "Failed to remove recording", "message_id", ev.MessageID)
		}

	case store.EventRoomDeleted:
		if s.ownsStream(ev.RoomID) {
			s.releaseQuietly(ctx)
		}
		if _, err := s.repo.DeleteByRoom(ctx, ev.RoomID); err != nil {
			s.log.LogError(err, "Failed to remove recordings", "room_id", ev.RoomID)
		}

	case store.EventCleared:
		s.releaseQuietly(ctx)
		if err := s.repo.DeleteAll(ctx); err != nil {
			s.log.LogError(err, "Failed to clear recordings")
		}
	}
}

func (s *AudioService) stopQuietly(ctx context.Context) {
	if err := s.session.Stop(ctx); err != nil {
		s.log.LogError(err, "Failed to stop playback")
	}
}

func (s *AudioService) releaseQuietly(ctx context.Context) {
	if err := s.Release(ctx); err != nil {
		s.log.LogError(err, "Failed to release audio")
	}
}
