package router

import (
	"time"

	"dinsac-chat/backend/internal/api"
	"dinsac-chat/backend/internal/ws"
	"dinsac-chat/backend/pkg/config"
	"dinsac-chat/backend/pkg/di"
	"dinsac-chat/backend/pkg/errors"
	"dinsac-chat/backend/pkg/logger"
	"dinsac-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Hub       *ws.Hub
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := config.Get()

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

	// Apply rate limiting to all routes
	rateLimiter := middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Hub:       container.Hub,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	chatHandler := api.NewChatHandler(
		r.Container.ChatService,
		r.Container.AttachmentService,
		r.Hub,
		r.Container.Metrics,
		r.Logger,
	)
	chatHandler.RegisterRoutes(r.Engine)

	// Attachment files are also served statically, as the frontends embed
	// uploads/<filename> URLs directly in message bodies
	r.Engine.Static("/uploads", r.Config.Uploads.Dir)

	// WebSocket route
	r.Engine.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(r.Hub, c)
	})

	// Health check endpoint
	r.Engine.GET("/health", r.healthCheckHandler())

	// Prometheus scrape endpoint
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheckHandler returns a simple health check handler
func (r *Router) healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := 200
		if err := config.Ping(r.Container.DB); err != nil {
			status = "degraded"
			code = 503
		}
		c.JSON(code, gin.H{
			"status":  status,
			"version": r.Config.Server.Env,
			"time":    time.Now().Format(time.RFC3339),
		})
	}
}

// corsMiddleware allows the storefront and admin frontends to reach the API,
// including websocket upgrade headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
