package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dinsac-chat/backend/internal/models"
	"dinsac-chat/backend/pkg/config"
	"dinsac-chat/backend/pkg/di"
	"dinsac-chat/backend/pkg/logger"
	"dinsac-chat/backend/pkg/observability"
	"dinsac-chat/backend/pkg/router"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	logg := logger.New(logConfig)
	logger.SetGlobal(logg)

	logg.Info("Starting chat backend", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// Initialize database
	db, err := config.NewDB(logg)
	if err != nil {
		logg.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&models.ChatMessage{}); err != nil {
		logg.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Index for the per-conversation history query
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_chat_messages_cliente_fecha ON chat_messages(cliente_id, fecha)").Error; err != nil {
		logg.LogError(err, "Failed to create message index", "index", "idx_chat_messages_cliente_fecha")
	}

	// Observability
	shutdownTracing := observability.SetupTracing("dinsac-chat")
	defer shutdownTracing()
	if _, err := observability.SetupMetrics(); err != nil {
		logg.LogError(err, "Failed to initialize metrics exporter")
	}

	// Initialize dependency injection container
	container, err := di.New(db, logg)
	if err != nil {
		logg.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	// Build the router
	r := router.New(container)
	r.SetupRoutes()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r.Engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		logg.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.LogError(err, "HTTP server failed")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logg.LogError(err, "Server forced to shutdown")
	}

	if err := container.Cache.Close(); err != nil {
		logg.LogError(err, "Failed to close cache connection")
	}

	logg.Info("Server exited")
}
