package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Client is one live websocket connection. It starts unregistered; the
// registrar event binds it to a conversation room.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	clienteID string
	nombre    string
	roomSet   map[string]bool
	closed    bool
}

// ServeWs upgrades the HTTP request and starts the client's pumps
func ServeWs(hub *Hub, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.LogError(err, "Error upgrading connection")
		return
	}

	client := &Client{
		ID:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, hub.sendBufferSize),
		hub:     hub,
		roomSet: make(map[string]bool),
	}

	if hub.metrics != nil {
		hub.metrics.ActiveConnections.Inc()
	}
	hub.logger.Info("Connection established", "connection_id", client.ID)

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Detach(c)
		c.conn.Close()
	}()

	if c.hub.maxMessageSize > 0 {
		c.conn.SetReadLimit(c.hub.maxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.LogError(err, "Websocket read error", "connection_id", c.ID)
			}
			break
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.hub.logger.LogError(err, "Invalid event frame", "connection_id", c.ID)
			c.sendError("Evento inválido")
			continue
		}

		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event Event) {
	switch event.Type {
	case EventRegistrar:
		c.handleRegister(event.Payload)
	case EventMensaje:
		c.handleMessage(event.Payload)
	default:
		c.hub.logger.Warn("Unknown event type", "type", event.Type, "connection_id", c.ID)
		c.sendError("Tipo de evento desconocido")
	}
}

func (c *Client) handleRegister(payload json.RawMessage) {
	var reg RegisterEvent
	if err := json.Unmarshal(payload, &reg); err != nil {
		c.sendError("Payload de registro inválido")
		return
	}
	if reg.ClienteID == "" {
		c.sendError("clienteId es requerido")
		return
	}

	c.clienteID = reg.ClienteID
	c.nombre = reg.Nombre
	c.hub.Join(c, reg.ClienteID)
}

func (c *Client) handleMessage(payload json.RawMessage) {
	var evt MessageEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		c.sendError("Payload de mensaje inválido")
		return
	}
	if err := evt.Validate(); err != nil {
		c.sendError(err.Error())
		return
	}

	if err := c.hub.Relay(context.Background(), evt); err != nil {
		c.sendError("No se pudo guardar el mensaje")
	}
}

// sendError reports a problem back to this connection only. Delivery goes
// through the hub so a concurrent detach cannot close the channel mid-send;
// if the buffer is full the notice is dropped.
func (c *Client) sendError(message string) {
	payload, err := marshalEvent(EventError, ErrorEvent{Message: message})
	if err != nil {
		return
	}
	if !c.hub.Send(c, payload) {
		c.hub.logger.Warn("Dropped error event", "connection_id", c.ID)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Flush any queued messages as separate frames
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
