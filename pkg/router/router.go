package router

import (
	"pratham-chat/backend/audio/api"
	chatapi "pratham-chat/backend/conversation/api"
	"pratham-chat/backend/conversation/ws"
	"pratham-chat/backend/pkg/config"
	"pratham-chat/backend/pkg/di"
	"pratham-chat/backend/pkg/errors"
	"pratham-chat/backend/pkg/logger"
	"pratham-chat/backend/pkg/middleware"
	"pratham-chat/backend/shared/observability"

	"github.com/gin-gonic/gin"
)

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	Config      *config.Config
	RateLimiter *middleware.RateLimiter
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	cfg := container.Config

	// Configure Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))

	// Add custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Add custom recovery middleware with structured logging instead of default
	engine.Use(errors.RecoveryWithLogger())

	engine.Use(middleware.CORS(cfg.Security.AllowedOrigins))

	opts := middleware.DefaultRateLimiterOptions()
	if cfg.Security.RateLimit > 0 {
		opts.Limit = rateLimit(cfg.Security.RateLimit)
	}
	if cfg.Security.RateLimitBurst > 0 {
		opts.Burst = cfg.Security.RateLimitBurst
	}

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		Config:      cfg,
		RateLimiter: middleware.NewRateLimiter(container.Logger, opts),
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	r.setupHealthRoutes()
	r.Engine.GET("/metrics", observability.MetricsHandler(c.Registry))

	if r.Config.OpenAPI.SchemaPath != "" {
		if err := r.AddOpenAPIValidation(r.Config.OpenAPI.SchemaPath); err != nil {
			r.Logger.LogError(err, "Skipping OpenAPI validation")
		}
	}

	jwtAuth := middleware.JWTAuthMiddleware(c.JWTService, r.Logger)
	bodyLimit := maxBodySize(r.Config.Security.MaxBodySize)

	// API version 1 routes, all authenticated
	v1 := r.Engine.Group("/api/v1")
	v1.Use(jwtAuth, r.RateLimiter.Middleware(), bodyLimit)
	chatapi.RegisterRoutes(v1, c.ChatHandler)
	api.RegisterRoutes(v1, c.AudioHandler)

	// WebSocket route; browsers pass the token as a query parameter
	wsHandler := ws.NewHandler(c.Hub, r.Config.Notice.TTL, originChecker(r.Config.Security.AllowedOrigins))
	r.Engine.GET("/ws/rooms/:roomId", jwtAuth, wsHandler.ServeWs)
}

// Close stops background work owned by the router
func (r *Router) Close() {
	r.RateLimiter.Close()
}
