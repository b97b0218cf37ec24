package service

import (
	"context"
	"fmt"
	"time"

	"dinsac-chat/backend/internal/models"
	"dinsac-chat/backend/internal/repository"
	"dinsac-chat/backend/pkg/cache"
	"dinsac-chat/backend/pkg/config"
	"dinsac-chat/backend/pkg/errors"
	"dinsac-chat/backend/pkg/logger"
)

// conversationListCacheKey holds the cached GET /clientes-chat response
const conversationListCacheKey = "chat:clientes"

// ChatService owns the message store semantics: append with stamping,
// ordered history, the conversation list, and the two-phase purge.
type ChatService struct {
	repo        repository.MessageRepository
	attachments *AttachmentService
	cache       *cache.Cache
	logger      *logger.Logger
	adminID     string
	anonPrefix  string
}

// NewChatService creates a chat service from the application configuration.
// cache may be nil, in which case every read goes to the database.
func NewChatService(repo repository.MessageRepository, attachments *AttachmentService, c *cache.Cache, log *logger.Logger) *ChatService {
	cfg := config.Get()
	return NewChatServiceWithConfig(repo, attachments, c, log, cfg.Chat.AdminID, cfg.Chat.AnonPrefix)
}

// NewChatServiceWithConfig creates a chat service with explicit chat settings
func NewChatServiceWithConfig(repo repository.MessageRepository, attachments *AttachmentService, c *cache.Cache, log *logger.Logger, adminID, anonPrefix string) *ChatService {
	return &ChatService{
		repo:        repo,
		attachments: attachments,
		cache:       c,
		logger:      log,
		adminID:     adminID,
		anonPrefix:  anonPrefix,
	}
}

// Append stores one immutable message, stamping the timestamp and deriving a
// display name when the caller omitted them. A driver failure is reported as
// STORAGE_UNAVAILABLE and nothing is stored.
func (s *ChatService) Append(ctx context.Context, msg *models.ChatMessage) error {
	if msg.Fecha.IsZero() {
		msg.Fecha = time.Now()
	}
	if msg.Nombre == "" {
		msg.Nombre = s.defaultNombre(msg.ClienteID)
	}

	if err := s.repo.Create(msg); err != nil {
		return errors.NewStorageUnavailableError(err)
	}

	s.invalidateList(ctx)
	return nil
}

// History returns the conversation's messages oldest first. A conversation
// without messages yields an empty slice, not an error.
func (s *ChatService) History(clienteID string) ([]models.ChatMessage, error) {
	messages, err := s.repo.ByConversation(clienteID)
	if err != nil {
		return nil, errors.NewStorageUnavailableError(err)
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return messages, nil
}

// ListConversations returns every conversation with at least one message,
// excluding the admin marker, with a display name taken from the latest
// message or derived from the identifier.
func (s *ChatService) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	if s.cache != nil {
		var cached []models.ConversationSummary
		if hit, err := s.cache.GetJSON(ctx, conversationListCacheKey, &cached); err != nil {
			s.logger.LogError(err, "Conversation list cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	ids, err := s.repo.DistinctConversations(s.adminID)
	if err != nil {
		return nil, errors.NewStorageUnavailableError(err)
	}

	summaries := make([]models.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		last, err := s.repo.LastMessage(id)
		if err != nil {
			s.logger.LogError(err, "Failed to load last message", "cliente_id", id)
			last = nil
		}
		summaries = append(summaries, models.ConversationSummary{
			ID:     id,
			Nombre: s.displayName(id, last),
		})
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, conversationListCacheKey, summaries); err != nil {
			s.logger.LogError(err, "Conversation list cache write failed")
		}
	}

	return summaries, nil
}

// Purge deletes a conversation in two phases: first the attachment files its
// message bodies reference, then the message records. The file phase must run
// first because it reads the bodies that the record deletion destroys. File
// cleanup is best effort; record deletion is not. A file uploaded while the
// scan runs can be orphaned (known race, accepted).
func (s *ChatService) Purge(ctx context.Context, clienteID string) (int64, error) {
	messages, err := s.repo.ByConversation(clienteID)
	if err != nil {
		return 0, errors.NewStorageUnavailableError(err)
	}

	filesRemoved := s.attachments.RemoveConversationFiles(messages)

	deleted, err := s.repo.DeleteByConversation(clienteID)
	if err != nil {
		return 0, errors.NewStorageUnavailableError(err)
	}

	s.invalidateList(ctx)
	s.logger.Info("Chat purged",
		"cliente_id", clienteID,
		"deleted_count", deleted,
		"files_removed", filesRemoved,
	)
	return deleted, nil
}

func (s *ChatService) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, conversationListCacheKey); err != nil {
		s.logger.LogError(err, "Conversation list cache invalidation failed")
	}
}

// defaultNombre derives the display name stored with a message when the
// sender did not supply one
func (s *ChatService) defaultNombre(clienteID string) string {
	if s.isAnon(clienteID) {
		return fmt.Sprintf("Cliente %s", s.anonSlice(clienteID))
	}
	return "Cliente"
}

// displayName derives the conversation-list name: the latest message's name
// when present, otherwise a slice of the identifier
func (s *ChatService) displayName(clienteID string, last *models.ChatMessage) string {
	if last != nil && last.Nombre != "" {
		return last.Nombre
	}
	if s.isAnon(clienteID) {
		return fmt.Sprintf("Cliente %s", s.anonSlice(clienteID))
	}
	prefix := clienteID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("Cliente %s", prefix)
}

func (s *ChatService) isAnon(clienteID string) bool {
	return s.anonPrefix != "" && len(clienteID) > len(s.anonPrefix) &&
		clienteID[:len(s.anonPrefix)] == s.anonPrefix
}

// anonSlice returns the four characters following the anonymous prefix,
// matching the slice the frontends display
func (s *ChatService) anonSlice(clienteID string) string {
	seg := clienteID[len(s.anonPrefix):]
	if len(seg) > 4 {
		seg = seg[:4]
	}
	return seg
}
