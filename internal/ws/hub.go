package ws

import (
	"context"
	"sync"

	"dinsac-chat/backend/internal/models"
	"dinsac-chat/backend/pkg/config"
	"dinsac-chat/backend/pkg/logger"
	"dinsac-chat/backend/pkg/observability"
)

// AdminsRoom is the reserved room every admin connection joins
const AdminsRoom = "admins"

// MessageStore defines the persistence interface the router depends on
type MessageStore interface {
	Append(ctx context.Context, msg *models.ChatMessage) error
}

// Hub owns the mapping between live connections and rooms and relays chat
// events to the correct audience. One Hub exists per process.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]bool
	store   MessageStore
	logger  *logger.Logger
	metrics *observability.ChatMetrics

	adminID        string
	sendBufferSize int
	maxMessageSize int64
}

// NewHub creates a hub from the application configuration
func NewHub(store MessageStore, log *logger.Logger, metrics *observability.ChatMetrics) *Hub {
	cfg := config.Get()
	return NewHubWithConfig(store, log, metrics, cfg.Chat.AdminID, cfg.Chat.SendBufferSize, cfg.Chat.MaxMessageSize)
}

// NewHubWithConfig creates a hub with explicit chat settings
func NewHubWithConfig(store MessageStore, log *logger.Logger, metrics *observability.ChatMetrics, adminID string, sendBufferSize int, maxMessageSize int64) *Hub {
	if sendBufferSize <= 0 {
		sendBufferSize = 256
	}
	return &Hub{
		rooms:          make(map[string]map[*Client]bool),
		store:          store,
		logger:         log,
		metrics:        metrics,
		adminID:        adminID,
		sendBufferSize: sendBufferSize,
		maxMessageSize: maxMessageSize,
	}
}

// Join places the client in the room named after its conversation identifier.
// The admin marker additionally joins the shared admins room. Re-joining is
// harmless.
func (h *Hub) Join(client *Client, clienteID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.joinRoom(client, clienteID)
	if clienteID == h.adminID {
		h.joinRoom(client, AdminsRoom)
		h.logger.Info("Admin registered", "room", AdminsRoom)
	} else {
		h.logger.Info("Client registered", "cliente_id", clienteID, "nombre", client.nombre)
	}
}

func (h *Hub) joinRoom(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
	client.roomSet[room] = true
}

// Detach removes the client from every room it joined and closes its send
// channel. Safe to call more than once; only the first call takes effect.
func (h *Hub) Detach(client *Client) {
	h.mu.Lock()
	if client.closed {
		h.mu.Unlock()
		return
	}
	client.closed = true
	for room := range client.roomSet {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	client.roomSet = make(map[string]bool)
	h.mu.Unlock()

	close(client.send)
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
	h.logger.Info("Connection closed", "connection_id", client.ID)
}

// Relay persists the message and broadcasts the persisted record to the
// opposite party's room: client messages go to the admins room, admin
// messages to the conversation room. A persistence failure aborts the
// broadcast so no connection ever sees a message that was not stored.
func (h *Hub) Relay(ctx context.Context, evt MessageEvent) error {
	msg := &models.ChatMessage{
		Remitente: evt.Remitente,
		Mensaje:   evt.Mensaje,
		ClienteID: evt.ClienteID,
		Nombre:    evt.Nombre,
	}
	if evt.Fecha != nil {
		msg.Fecha = *evt.Fecha
	}

	if err := h.store.Append(ctx, msg); err != nil {
		if h.metrics != nil {
			h.metrics.PersistenceFailures.Inc()
		}
		h.logger.LogError(err, "Failed to persist message", "cliente_id", evt.ClienteID)
		return err
	}

	payload, err := marshalEvent(EventMensaje, msg)
	if err != nil {
		h.logger.LogError(err, "Failed to encode message", "cliente_id", evt.ClienteID)
		return err
	}

	room := evt.ClienteID
	if evt.Remitente == models.RemitenteCliente {
		room = AdminsRoom
	}
	h.Broadcast(room, payload)

	if h.metrics != nil {
		h.metrics.MessagesRelayed.WithLabelValues(evt.Remitente).Inc()
	}
	return nil
}

// NotifyPurge tells connected admins that a conversation was deleted
func (h *Hub) NotifyPurge(clienteID string) {
	payload, err := marshalEvent(EventChatEliminado, PurgeEvent{ClienteID: clienteID})
	if err != nil {
		h.logger.LogError(err, "Failed to encode purge notification", "cliente_id", clienteID)
		return
	}
	h.Broadcast(AdminsRoom, payload)
}

// Broadcast delivers a frame to every member of the room. A client whose send
// buffer is full is dropped, as a slow consumer would otherwise stall the room.
func (h *Hub) Broadcast(room string, payload []byte) {
	h.mu.RLock()
	var blocked []*Client
	for client := range h.rooms[room] {
		select {
		case client.send <- payload:
		default:
			blocked = append(blocked, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range blocked {
		h.logger.Warn("Client removed due to blocked channel", "connection_id", client.ID)
		h.Detach(client)
		client.conn.Close()
	}
}

// Send delivers a frame to a single client. The hub lock orders the send
// against Detach closing the channel, and already-detached clients are
// skipped, so pump goroutines can never hit a closed channel. The recover is
// a backstop only. Returns false when the frame was dropped.
func (h *Hub) Send(client *Client, payload []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("Send raced a detach", "connection_id", client.ID)
			sent = false
		}
	}()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client.closed {
		return false
	}
	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// RoomSize reports the current member count of a room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
