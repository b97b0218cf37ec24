package repository

import (
	"dinsac-chat/backend/internal/models"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(message *models.ChatMessage) error
	ByConversation(clienteID string) ([]models.ChatMessage, error)
	DistinctConversations(exclude string) ([]string, error)
	LastMessage(clienteID string) (*models.ChatMessage, error)
	DeleteByConversation(clienteID string) (int64, error)
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(message *models.ChatMessage) error {
	return r.db.Create(message).Error
}

func (r *GormMessageRepository) ByConversation(clienteID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.Where("cliente_id = ?", clienteID).
		Order("fecha ASC").
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) DistinctConversations(exclude string) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.ChatMessage{}).
		Where("cliente_id <> ?", exclude).
		Distinct("cliente_id").
		Pluck("cliente_id", &ids).Error
	return ids, err
}

func (r *GormMessageRepository) LastMessage(clienteID string) (*models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.Where("cliente_id = ?", clienteID).
		Order("fecha DESC").
		First(&message).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *GormMessageRepository) DeleteByConversation(clienteID string) (int64, error) {
	result := r.db.Where("cliente_id = ?", clienteID).Delete(&models.ChatMessage{})
	return result.RowsAffected, result.Error
}
