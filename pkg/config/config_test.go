package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, BackendPebble, cfg.Persist.Backend)
	assert.Equal(t, []string{"chat"}, cfg.Persist.Whitelist)
	assert.Equal(t, 25, cfg.Chat.PageSize)
	assert.Equal(t, time.Second, cfg.Audio.MinRecording)
	assert.Equal(t, 2*time.Second, cfg.Notice.TTL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpiryHours)
	assert.Equal(t, "http://localhost:8081", cfg.Server.BaseURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PERSIST_BACKEND", "Redis")
	t.Setenv("PERSIST_WHITELIST", "chat, audio ,")
	t.Setenv("PERSIST_SEAL", "true")
	t.Setenv("AUDIO_MIN_RECORDING", "1500ms")
	t.Setenv("CHAT_PAGE_SIZE", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "http://localhost:9000", cfg.Server.BaseURL)
	assert.Equal(t, BackendRedis, cfg.Persist.Backend)
	assert.Equal(t, []string{"chat", "audio"}, cfg.Persist.Whitelist)
	assert.True(t, cfg.Persist.Seal)
	assert.Equal(t, 1500*time.Millisecond, cfg.Audio.MinRecording)
	// unparsable values fall back to the default
	assert.Equal(t, 25, cfg.Chat.PageSize)
	assert.Len(t, cfg.Security.AllowedOrigins, 2)
}

func TestNewDBRejectsUnreachableHost(t *testing.T) {
	cfg := Load()
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = "1"
	cfg.Database.Timeout = time.Second
	cfg.Database.Retries = 1

	_, err := NewDB(cfg)
	assert.Error(t, err)
}
