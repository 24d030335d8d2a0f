// Package persist is the key-value collaborator that keeps whitelisted state
// slices across restarts. Several backends are available; all of them store
// opaque byte values under string keys.
package persist

import (
	"context"
	"errors"
	"fmt"

	"pratham-chat/backend/pkg/config"
	"pratham-chat/backend/pkg/logger"
	"pratham-chat/backend/shared/redis"
)

// ErrNotFound is returned by Get when the key has no value
var ErrNotFound = errors.New("persist: key not found")

// Backend is a minimal key-value store
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
	Name() string
}

// Open builds the backend selected by cfg.Persist.Backend
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (Backend, error) {
	log = logger.Or(log)

	switch cfg.Persist.Backend {
	case config.BackendMemory:
		return NewMemory(), nil

	case config.BackendPebble:
		log.Info("Opening pebble store", "dir", cfg.Pebble.Dir)
		return OpenPebble(cfg.Pebble.Dir, nil)

	case config.BackendRedis:
		client := redis.NewRedisClient(cfg)
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info("Using redis store", "addr", cfg.Redis.Addr)
		return NewRedis(client), nil

	case config.BackendPostgres:
		db, err := config.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		return NewGorm(db)

	default:
		return nil, fmt.Errorf("persist: unknown backend %q", cfg.Persist.Backend)
	}
}
