package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/realtime"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// WebSocketHandler handles WebSocket connections.
type WebSocketHandler struct {
	Upgrader websocket.Upgrader
	Manager  *realtime.SubscriptionManager
	Logger   *logger.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(manager *realtime.SubscriptionManager, logger *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		Manager: manager,
		Logger:  logger,
	}
}

// SubscriptionMessage defines the structure for messages from the client.
// An empty FacilityID subscribes to every facility's updates.
type SubscriptionMessage struct {
	Type       string `json:"type"`
	FacilityID string `json:"facilityId,omitempty"`
}

// HandleConnections upgrades HTTP requests to WebSocket connections and manages them.
func (h *WebSocketHandler) HandleConnections(c *gin.Context) {
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("failed to upgrade websocket connection", "error", err)
		return
	}
	h.Logger.Info("websocket connection upgraded")

	client := &realtime.Client{
		ID:      realtime.GenerateClientID(),
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Manager: h.Manager,
	}

	h.Manager.EnqueueClientRegistration(client)

	go h.writePump(client)
	go h.readPump(client)
}

// readPump pumps messages from the WebSocket connection to the hub.
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (h *WebSocketHandler) readPump(client *realtime.Client) {
	defer func() {
		client.Manager.UnregisterClient(client)
		if err := client.Conn.Close(); err != nil {
			h.Logger.Error("error closing websocket connection on readPump exit", "clientId", client.ID, "error", err)
		}
		h.Logger.Info("websocket readPump exited, client unregistered", "clientId", client.ID)
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	if err := client.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.Logger.Error("failed to set read deadline for websocket", "clientId", client.ID, "error", err)
		return
	}
	client.Conn.SetPongHandler(func(string) error {
		if err := client.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			h.Logger.Error("failed to set read deadline on pong", "clientId", client.ID, "error", err)
		}
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Error("websocket read error", "clientId", client.ID, "error", err)
			} else {
				h.Logger.Info("websocket closed", "clientId", client.ID, "error", err)
			}
			break
		}

		var msg SubscriptionMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.Logger.Warn("failed to unmarshal message from client", "clientId", client.ID, "message", string(message), "error", err)
			continue
		}

		h.Logger.Info("received message from client", "clientId", client.ID, "type", msg.Type, "facilityId", msg.FacilityID)

		switch msg.Type {
		case "subscribe":
			client.Manager.RegisterClient(client, msg.FacilityID)
			h.ackSubscription(client, msg.FacilityID)
		default:
			h.Logger.Info("unknown message type from client", "clientId", client.ID, "type", msg.Type)
		}

		if err := client.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			h.Logger.Error("failed to set read deadline after message read", "clientId", client.ID, "error", err)
			break
		}
	}
}

// ackSubscription confirms a subscribe request over the client's own send
// channel, reusing the realtime.WebSocketMessage envelope that carries
// state_changed broadcasts so a client can distinguish "subscribed to
// everything" (empty facilityID, e.g. a dashboard view watching the whole
// roster) from "subscribed to one facility" without guessing from silence.
func (h *WebSocketHandler) ackSubscription(client *realtime.Client, facilityID string) {
	if facilityID == "" {
		h.Logger.Info("client subscribed to every facility's updates", "clientId", client.ID)
	}

	ack := realtime.WebSocketMessage{
		Type:    "subscribed",
		Payload: SubscriptionMessage{Type: "subscribed", FacilityID: facilityID},
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		h.Logger.Error("failed to marshal subscription ack", "clientId", client.ID, "error", err)
		return
	}

	select {
	case client.Send <- payload:
	default:
		h.Logger.Warn("client send channel full, subscription ack dropped", "clientId", client.ID)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (h *WebSocketHandler) writePump(client *realtime.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := client.Conn.Close(); err != nil {
			h.Logger.Error("error closing websocket connection on writePump exit", "clientId", client.ID, "error", err)
		}
		h.Logger.Info("websocket writePump exited", "clientId", client.ID)
	}()

	for {
		select {
		case message, ok := <-client.Send:
			if err := client.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.Logger.Error("failed to set write deadline", "clientId", client.ID, "error", err)
			}
			if !ok {
				h.Logger.Info("client send channel closed by manager", "clientId", client.ID)
				if err := client.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					h.Logger.Error("error writing close message", "clientId", client.ID, "error", err)
				}
				return
			}

			w, err := client.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				h.Logger.Error("failed to get next writer", "clientId", client.ID, "error", err)
				return
			}
			if _, err := w.Write(message); err != nil {
				h.Logger.Error("error writing message to websocket", "clientId", client.ID, "error", err)
			}
			if err := w.Close(); err != nil {
				h.Logger.Error("error closing message writer", "clientId", client.ID, "error", err)
				return
			}
		case <-ticker.C:
			if err := client.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.Logger.Error("failed to set write deadline for ping", "clientId", client.ID, "error", err)
				return
			}
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Logger.Error("error writing ping message", "clientId", client.ID, "error", err)
				return
			}
		}
	}
}
