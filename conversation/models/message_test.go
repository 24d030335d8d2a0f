package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageValueMethods(t *testing.T) {
	text := Message{ID: "m1", SenderID: "me", Kind: KindText, Text: "hello"}
	audio := Message{ID: "m2", SenderID: "alice", Kind: KindAudio, Audio: &AudioBody{URI: "file:///a.m4a", DurationMs: 1200}}

	assert.Equal(t, "hello", text.Summary())
	assert.Equal(t, AudioSummary, audio.Summary())
	assert.Equal(t, &ReplySnapshot{ID: "m2", SenderID: "alice", Text: AudioSummary}, audio.Snapshot())

	clone := audio.Clone()
	clone.Audio.DurationMs = 1
	assert.Equal(t, int64(1200), audio.Audio.DurationMs)
}
