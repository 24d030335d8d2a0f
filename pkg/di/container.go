package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	audioapi "pratham-chat/backend/audio/api"
	"pratham-chat/backend/audio/device"
	"pratham-chat/backend/audio/repository"
	audioservice "pratham-chat/backend/audio/service"
	"pratham-chat/backend/audio/session"
	chatapi "pratham-chat/backend/conversation/api"
	chatservice "pratham-chat/backend/conversation/service"
	"pratham-chat/backend/conversation/store"
	"pratham-chat/backend/conversation/ws"
	"pratham-chat/backend/pkg/config"
	"pratham-chat/backend/pkg/health"
	"pratham-chat/backend/pkg/jwt"
	"pratham-chat/backend/pkg/logger"
	"pratham-chat/backend/pkg/persist"
	"pratham-chat/backend/pkg/resilience"
	"pratham-chat/backend/pkg/secrets"
	"pratham-chat/backend/shared/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config  *config.Config
	Logger  *logger.Logger
	Secrets secrets.Manager

	JWTService *jwt.Service

	// DB is only set for the postgres persistence backend
	DB        *gorm.DB
	Backend   persist.Backend
	Breaker   *resilience.CircuitBreaker
	Persistor *persist.Persistor

	Registry      *prometheus.Registry
	Metrics       *observability.Metrics
	MeterProvider *sdkmetric.MeterProvider

	Store        *store.Store
	ChatService  *chatservice.ChatService
	Session      *session.Session
	AudioRepo    repository.AudioRepository
	AudioService *audioservice.AudioService
	Hub          *ws.Hub
	Health       *health.Checker

	ChatHandler  *chatapi.ChatHandler
	AudioHandler *audioapi.AudioHandler

	closers []func(ctx context.Context) error
}

// Options overrides parts of the wiring; used by tests and tools
type Options struct {
	// Secrets replaces the Vault/env manager
	Secrets secrets.Manager
	// Backend replaces the backend selected by the config
	Backend persist.Backend
	// AudioIO replaces the simulated audio device
	AudioIO session.AudioIO
	// TraceWriter receives spans; defaults to stdout when tracing is enabled
	TraceWriter io.Writer
}

// New wires the application from cfg. Close releases everything New opened.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger.Or(log)}
	if err := c.build(ctx, opts); err != nil {
		if closeErr := c.Close(context.Background()); closeErr != nil {
			c.Logger.LogError(closeErr, "Failed to release partially built container")
		}
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context, opts Options) error {
	cfg, log := c.Config, c.Logger

	// Secrets
	c.Secrets = opts.Secrets
	if c.Secrets == nil {
		manager, err := secrets.NewVaultManager(cfg, log)
		if err != nil {
			return fmt.Errorf("secrets: %w", err)
		}
		c.Secrets = manager
		c.onClose(func(context.Context) error { manager.Close(); return nil })
	}
	secrets.SetManager(c.Secrets)

	jwtSecret := c.Secrets.GetSecretWithDefault(ctx, secrets.KeyJWTSecret, cfg.JWT.Secret)
	if jwtSecret == "" {
		if cfg.Server.Env == "production" {
			return errors.New("jwt secret is not configured")
		}
		log.Warn("No JWT secret configured, using the development secret")
	}
	c.JWTService = jwt.NewService(jwtSecret, cfg.JWT.ExpiryHours)

	// Observability
	if cfg.Tracing.Stdout || opts.TraceWriter != nil {
		w := opts.TraceWriter
		if w == nil {
			w = os.Stdout
		}
		shutdown, err := observability.SetupTracing(cfg.Tracing.ServiceName, w)
		if err != nil {
			return err
		}
		c.onClose(shutdown)
	}

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mp, err := observability.SetupPrometheusMetrics(c.Registry)
	if err != nil {
		return err
	}
	c.MeterProvider = mp
	c.onClose(mp.Shutdown)

	c.Metrics, err = observability.NewMetrics(c.Registry)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// Persistence
	if err := c.openPersistence(ctx, opts); err != nil {
		return err
	}

	breakerCfg := resilience.DefaultCircuitBreakerConfig("persist")
	breakerCfg.OnStateChange = func(name string, from, to resilience.CircuitBreakerState) {
		log.Warn("Circuit breaker changed state", "name", name, "from", string(from), "to", string(to))
	}
	c.Breaker = resilience.NewCircuitBreaker(breakerCfg, log)

	persistOpts := []persist.PersistorOption{persist.WithBreaker(c.Breaker), persist.WithLogger(log)}
	if cfg.Persist.Seal {
		key := c.Secrets.GetSecretWithDefault(ctx, secrets.KeyPersistSealKey, "")
		if key == "" {
			return errors.New("persist sealing is enabled but no seal key is configured")
		}
		sealer, err := persist.NewSealer(key)
		if err != nil {
			return err
		}
		persistOpts = append(persistOpts, persist.WithSealer(sealer))
	}
	c.Persistor = persist.NewPersistor(c.Backend, cfg.Persist.Key, cfg.Persist.Whitelist, persistOpts...)

	// Chat
	c.Store = store.New()
	c.ChatService = chatservice.NewChatService(c.Store, chatservice.Options{
		Persistor:      c.Persistor,
		Metrics:        c.Metrics,
		Logger:         log,
		WelcomeMessage: cfg.Chat.WelcomeMessage,
	})
	if err := c.ChatService.Init(ctx); err != nil {
		return fmt.Errorf("restore chat state: %w", err)
	}
	c.onClose(func(context.Context) error { c.ChatService.Close(); return nil })

	// Audio
	audioIO := opts.AudioIO
	if audioIO == nil {
		if err := os.MkdirAll(cfg.Audio.StorageDir, 0o755); err != nil {
			return fmt.Errorf("audio storage dir: %w", err)
		}
		audioIO = device.NewSimulated(cfg.Audio.StorageDir, cfg.Audio.TickInterval)
	}
	c.Session = session.New(audioIO, session.Options{
		MinRecording: cfg.Audio.MinRecording,
		Logger:       log,
		OnTransition: func(from, to session.State) {
			c.Metrics.Transition(string(from), string(to))
		},
	})
	c.AudioService = audioservice.NewAudioService(c.Session, c.ChatService, c.AudioRepo, log)
	c.onClose(c.AudioService.Close)

	// Transport
	c.Hub = ws.NewHub(c.ChatService, c.AudioService, log).WithMetrics(c.Metrics)
	c.ChatHandler = chatapi.NewChatHandler(c.ChatService, cfg.Chat.PageSize)
	c.AudioHandler = audioapi.NewAudioHandler(c.AudioService)

	// Health
	c.Health = health.NewChecker(log, 0, cfg.Server.Env)
	c.Health.RegisterPingCheck("persistence", c.Backend.Ping)
	c.Health.RegisterCheck("persist_breaker", false, func(context.Context) (health.Status, string, error) {
		if c.Breaker.GetState() == resilience.StateOpen {
			return health.StatusDegraded, "snapshot writes are paused", nil
		}
		return health.StatusUp, "snapshot writes are flowing", nil
	})

	return nil
}

// openPersistence selects the snapshot backend and the recording catalog.
// With postgres both share one connection pool.
func (c *Container) openPersistence(ctx context.Context, opts Options) error {
	cfg := c.Config

	switch {
	case opts.Backend != nil:
		c.Backend = opts.Backend
		c.AudioRepo = repository.NewMemoryAudioRepository()
		return nil

	case cfg.Persist.Backend == config.BackendPostgres:
		db, err := config.NewDB(cfg)
		if err != nil {
			return err
		}
		c.DB = db
		backend, err := persist.NewGorm(db)
		if err != nil {
			return err
		}
		c.Backend = backend
		c.onClose(func(context.Context) error { return backend.Close() })

		repo, err := repository.NewGormAudioRepository(db)
		if err != nil {
			return err
		}
		c.AudioRepo = repo
		return nil

	default:
		backend, err := persist.Open(ctx, cfg, c.Logger)
		if err != nil {
			return fmt.Errorf("open %s backend: %w", cfg.Persist.Backend, err)
		}
		c.Backend = backend
		c.onClose(func(context.Context) error { return backend.Close() })
		c.AudioRepo = repository.NewMemoryAudioRepository()
		return nil
	}
}

func (c *Container) onClose(fn func(ctx context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse order of acquisition
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
