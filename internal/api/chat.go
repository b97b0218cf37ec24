package api

import (
	"context"
	"mime/multipart"
	"net/http"

	"dinsac-chat/backend/internal/models"
	"dinsac-chat/backend/internal/service"
	"dinsac-chat/backend/pkg/errors"
	"dinsac-chat/backend/pkg/logger"
	"dinsac-chat/backend/pkg/observability"

	"github.com/gin-gonic/gin"
)

// ChatStore defines the message-store operations the HTTP surface needs
type ChatStore interface {
	History(clienteID string) ([]models.ChatMessage, error)
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
	Purge(ctx context.Context, clienteID string) (int64, error)
}

// AttachmentStore defines the upload operations the HTTP surface needs
type AttachmentStore interface {
	Save(file *multipart.FileHeader) (*service.StoredFile, error)
	Resolve(nombre string) (string, error)
}

// PurgeNotifier pushes the chat-eliminado event to connected admins
type PurgeNotifier interface {
	NotifyPurge(clienteID string)
}

// ChatHandler serves the chat HTTP endpoints
type ChatHandler struct {
	chat        ChatStore
	attachments AttachmentStore
	notifier    PurgeNotifier
	metrics     *observability.ChatMetrics
	logger      *logger.Logger
}

func NewChatHandler(chat ChatStore, attachments AttachmentStore, notifier PurgeNotifier, metrics *observability.ChatMetrics, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:        chat,
		attachments: attachments,
		notifier:    notifier,
		metrics:     metrics,
		logger:      log,
	}
}

// RegisterRoutes mounts the chat endpoints on the engine. Paths are kept
// exactly as the DINSAC frontends call them.
func (h *ChatHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/clientes-chat", h.ListConversations)
	r.GET("/chats/:clienteId", h.GetHistory)
	r.DELETE("/chats/:clienteId", h.DeleteChat)
	r.POST("/upload-chat", h.Upload)
	r.GET("/descargar/:archivo", h.Download)
}

// ListConversations returns every conversation with at least one message
func (h *ChatHandler) ListConversations(c *gin.Context) {
	summaries, err := h.chat.ListConversations(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// GetHistory returns a conversation's messages oldest first
func (h *ChatHandler) GetHistory(c *gin.Context) {
	messages, err := h.chat.History(c.Param("clienteId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// DeleteChat purges a conversation's messages and attachment files, then
// notifies connected admins
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	clienteID := c.Param("clienteId")

	deleted, err := h.chat.Purge(c.Request.Context(), clienteID)
	if err != nil {
		c.Error(err)
		return
	}

	h.notifier.NotifyPurge(clienteID)
	if h.metrics != nil {
		h.metrics.ConversationsPurged.Inc()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"deletedCount": deleted,
	})
}

// Upload accepts one attachment in the multipart field "archivo"
func (h *ChatHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("archivo")
	if err != nil {
		c.Error(errors.NewMissingFileError())
		return
	}

	stored, err := h.attachments.Save(file)
	if err != nil {
		c.Error(err)
		return
	}

	if h.metrics != nil {
		h.metrics.UploadBytes.Observe(float64(file.Size))
	}
	h.logger.Info("Attachment uploaded", "archivo", stored.Nombre, "bytes", file.Size)

	c.JSON(http.StatusOK, stored)
}

// Download streams a stored attachment
func (h *ChatHandler) Download(c *gin.Context) {
	nombre := c.Param("archivo")

	path, err := h.attachments.Resolve(nombre)
	if err != nil {
		c.Error(err)
		return
	}

	c.FileAttachment(path, nombre)
}
