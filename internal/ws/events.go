package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"dinsac-chat/backend/internal/models"
)

// Event names mirror the socket protocol the DINSAC frontends speak
const (
	EventRegistrar     = "registrar"
	EventMensaje       = "mensaje"
	EventChatEliminado = "chat-eliminado"
	EventError         = "error"
)

// Event is the envelope every frame carries in both directions
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RegisterEvent joins the connection to its conversation room
type RegisterEvent struct {
	ClienteID string `json:"clienteId"`
	Nombre    string `json:"nombre,omitempty"`
}

// MessageEvent is one inbound chat message
type MessageEvent struct {
	Remitente string     `json:"remitente"`
	ClienteID string     `json:"clienteId"`
	Mensaje   string     `json:"mensaje"`
	Nombre    string     `json:"nombre,omitempty"`
	Fecha     *time.Time `json:"fecha,omitempty"`
}

// Validate checks the required fields before the event reaches the router
func (e *MessageEvent) Validate() error {
	if e.Remitente != models.RemitenteCliente && e.Remitente != models.RemitenteAdmin {
		return fmt.Errorf("remitente must be %q or %q", models.RemitenteCliente, models.RemitenteAdmin)
	}
	if e.ClienteID == "" {
		return fmt.Errorf("clienteId is required")
	}
	if e.Mensaje == "" {
		return fmt.Errorf("mensaje is required")
	}
	return nil
}

// PurgeEvent notifies admins that a conversation was deleted
type PurgeEvent struct {
	ClienteID string `json:"clienteId"`
}

// ErrorEvent is sent back to the offending connection only
type ErrorEvent struct {
	Message string `json:"message"`
}

func marshalEvent(eventType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: eventType, Payload: raw})
}
