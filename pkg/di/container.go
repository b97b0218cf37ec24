package di

import (
	"dinsac-chat/backend/internal/repository"
	"dinsac-chat/backend/internal/service"
	"dinsac-chat/backend/internal/ws"
	"dinsac-chat/backend/pkg/cache"
	"dinsac-chat/backend/pkg/logger"
	"dinsac-chat/backend/pkg/observability"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB                *gorm.DB
	Logger            *logger.Logger
	Cache             *cache.Cache
	Metrics           *observability.ChatMetrics
	MessageRepository repository.MessageRepository
	AttachmentService *service.AttachmentService
	ChatService       *service.ChatService
	Hub               *ws.Hub
}

// New creates a new dependency injection container
func New(db *gorm.DB, log *logger.Logger) (*Container, error) {
	metrics := observability.NewChatMetrics()
	c := cache.New()

	messageRepo := repository.NewGormMessageRepository(db)
	attachmentService := service.NewAttachmentService(log)
	if err := attachmentService.EnsureDir(); err != nil {
		return nil, err
	}
	chatService := service.NewChatService(messageRepo, attachmentService, c, log)

	hub := ws.NewHub(chatService, log, metrics)

	return &Container{
		DB:                db,
		Logger:            log,
		Cache:             c,
		Metrics:           metrics,
		MessageRepository: messageRepo,
		AttachmentService: attachmentService,
		ChatService:       chatService,
		Hub:               hub,
	}, nil
}
