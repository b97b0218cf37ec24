package models

import (
	"time"
)

// Sender roles carried in the remitente field
const (
	RemitenteCliente = "cliente"
	RemitenteAdmin   = "admin"
)

// ChatMessage represents one persisted chat message. JSON field names match
// the wire format the DINSAC frontends already speak.
type ChatMessage struct {
	ID        uint      `json:"_id" gorm:"primaryKey"`
	Remitente string    `json:"remitente"`
	Mensaje   string    `json:"mensaje"`
	ClienteID string    `json:"clienteId" gorm:"column:cliente_id;index"`
	Nombre    string    `json:"nombre"`
	Fecha     time.Time `json:"fecha" gorm:"index"`
	CreatedAt time.Time `json:"-"`
}

// ConversationSummary is one row of the conversation list shown to admins
type ConversationSummary struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
}
