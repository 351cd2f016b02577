package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/slotwise/courtkeeper/internal/events"
	"github.com/slotwise/courtkeeper/internal/logger"
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

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	ID string
	// The websocket connection.
	Conn *websocket.Conn
	// Buffered channel of outbound messages.
	Send chan []byte
	// FacilityID this client is subscribed to for targeted updates. Empty
	// means the client wants every facility's updates (e.g. a dashboard view).
	FacilityID string
	// Reference to the manager.
	Manager *SubscriptionManager
}

// SubscriptionManager maintains the set of active clients and fans out
// state_changed notifications to whichever clients are watching the
// affected facility.
type SubscriptionManager struct {
	// Registered clients.
	clients map[*Client]bool
	// Register requests from the clients.
	register chan *Client
	// Unregister requests from clients.
	unregister chan *Client
	// Subscriptions: facilityID -> set of clients.
	subscriptions map[string]map[*Client]bool
	// Logger
	Logger *logger.Logger
	// NATS Event Subscriber
	Subscriber *events.Subscriber
	// Mutex for protecting concurrent access to clients and subscriptions maps.
	mu sync.RWMutex
}

// NewSubscriptionManager creates a new SubscriptionManager.
func NewSubscriptionManager(logger *logger.Logger, subscriber *events.Subscriber) *SubscriptionManager {
	return &SubscriptionManager{
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		Logger:        logger,
		Subscriber:    subscriber,
	}
}

// EnqueueClientRegistration sends a client to the manager's register channel
// for initial registration into the main client list.
func (m *SubscriptionManager) EnqueueClientRegistration(client *Client) {
	m.register <- client
}

// Run starts the subscription manager's event loop.
// This should be run in a goroutine.
func (m *SubscriptionManager) Run() {
	m.Logger.Info("subscription manager run loop started")
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			m.Logger.Info("client registered", "clientId", client.ID)
			m.mu.Unlock()
		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.Send)
				for facilityID, clients := range m.subscriptions {
					if _, subscribed := clients[client]; subscribed {
						delete(m.subscriptions[facilityID], client)
						if len(m.subscriptions[facilityID]) == 0 {
							delete(m.subscriptions, facilityID)
						}
						m.Logger.Info("client unregistered from facility", "clientId", client.ID, "facilityId", facilityID)
					}
				}
				m.Logger.Info("client unregistered", "clientId", client.ID)
			}
			m.mu.Unlock()
		}
	}
}

// RegisterClient associates a client with a specific facilityID for
// targeted messages. An empty facilityID subscribes to every facility.
func (m *SubscriptionManager) RegisterClient(client *Client, facilityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client == nil {
		m.Logger.Error("attempted to register a nil client")
		return
	}

	client.FacilityID = facilityID

	if _, ok := m.subscriptions[facilityID]; !ok {
		m.subscriptions[facilityID] = make(map[*Client]bool)
	}
	m.subscriptions[facilityID][client] = true
	m.Logger.Info("client subscribed to facility", "clientId", client.ID, "facilityId", facilityID)
}

// UnregisterClient removes a client from all its subscriptions and the manager.
// This is typically called when a client disconnects.
func (m *SubscriptionManager) UnregisterClient(client *Client) {
	m.unregister <- client
}

// Broadcast sends a message to every registered client regardless of
// subscription, used for the global ("") facility id.
func (m *SubscriptionManager) Broadcast(message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.clients {
		select {
		case client.Send <- message:
		default:
			m.Logger.Warn("client send channel full, message dropped", "clientId", client.ID)
		}
	}
}

// SendToFacility sends a message to clients subscribed to facilityID, plus
// any client subscribed to every facility ("").
func (m *SubscriptionManager) SendToFacility(facilityID string, message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if subscribers, ok := m.subscriptions[facilityID]; ok {
		m.Logger.Info("sending message to facility", "facilityId", facilityID, "numSubscribers", len(subscribers))
		for client := range subscribers {
			// Non-blocking send: if the client's send buffer is full, drop
			// the message rather than stall delivery to everyone else.
			select {
			case client.Send <- message:
				m.Logger.Debug("message sent to client", "clientId", client.ID, "facilityId", facilityID)
			default:
				m.Logger.Warn("client send channel full, message dropped", "clientId", client.ID, "facilityId", facilityID)
			}
		}
	}

	if facilityID != "" {
		if global, ok := m.subscriptions[""]; ok {
			for client := range global {
				select {
				case client.Send <- message:
				default:
					m.Logger.Warn("client send channel full, message dropped", "clientId", client.ID, "facilityId", "")
				}
			}
		}
	}
}

// GenerateClientID returns a new unique client id.
func GenerateClientID() string {
	return uuid.New().String()
}

// WebSocketMessage defines the structure for messages sent to clients.
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// handleStateChanged processes the single state_changed NATS event and
// forwards it to whichever clients are watching the named facility (or
// everyone, if the event carries no facility id).
func (m *SubscriptionManager) handleStateChanged(data []byte) {
	var payload events.StateChangedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		m.Logger.Error("failed to unmarshal state_changed payload", "error", err, "rawData", string(data))
		return
	}

	wsMessage := WebSocketMessage{
		Type:    "state_changed",
		Payload: payload,
	}

	jsonMessage, err := json.Marshal(wsMessage)
	if err != nil {
		m.Logger.Error("failed to marshal websocket message for state_changed", "error", err)
		return
	}

	if payload.FacilityID == "" {
		m.Logger.Info("broadcasting state_changed to all clients")
		m.Broadcast(jsonMessage)
		return
	}

	m.Logger.Info("forwarding state_changed to facility subscribers", "facilityId", payload.FacilityID)
	m.SendToFacility(payload.FacilityID, jsonMessage)
}

// StartEventSubscriptions sets up the NATS subscription for the
// SubscriptionManager. Each running instance holds its own subscription and
// forwards the signal on to its own locally-connected websocket clients.
func (m *SubscriptionManager) StartEventSubscriptions() {
	if m.Subscriber == nil {
		m.Logger.Error("NATS subscriber is not initialized, cannot start event subscriptions")
		return
	}
	m.Logger.Info("starting NATS event subscriptions")

	err := m.Subscriber.Subscribe(events.StateChangedEvent, func(data []byte) error {
		m.handleStateChanged(data)
		return nil
	})
	if err != nil {
		m.Logger.Error("failed to subscribe to state_changed", "error", err)
	} else {
		m.Logger.Info("subscribed to state_changed")
	}
}
