package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/qishuigrab/api/internal/model"
	"github.com/qishuigrab/api/internal/progress"
)

// Client represents a WebSocket client
type Client struct {
	Token string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub maintains active WebSocket connections. Subscribers are grouped by
// progress token; requests that carry no token publish under the operation
// kind itself, which keeps the single-channel behavior for lone clients.
type Hub struct {
	// Clients grouped by progress token
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to token subscribers
	broadcast chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	Token   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.Token] == nil {
				h.clients[client.Token] = make(map[*Client]bool)
			}
			h.clients[client.Token][client] = true
			h.mu.Unlock()
			log.Printf("Client subscribed to progress token %s", client.Token)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.Token]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.Token)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unsubscribed from progress token %s", client.Token)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.Token]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastProgress sends a progress update to all token subscribers.
func (h *Hub) BroadcastProgress(token string, op model.Operation, percent int) {
	msg := model.WSProgressMessage{
		Type:      model.WSMessageTypeProgress,
		Operation: op,
		Progress:  percent,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal progress message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		Token:   token,
		Message: data,
	}
}

// BroadcastError sends an error message to all token subscribers.
func (h *Hub) BroadcastError(token string, op model.Operation, code, message string) {
	msg := model.WSErrorMessage{
		Type:      model.WSMessageTypeError,
		Operation: op,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal error message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		Token:   token,
		Message: data,
	}
}

// Sink returns a progress.Sink publishing under token. An empty token falls
// back to the operation kind, so untokened requests stay observable.
func (h *Hub) Sink(token string) progress.Sink {
	return &hubSink{hub: h, token: token}
}

type hubSink struct {
	hub   *Hub
	token string
}

func (s *hubSink) Publish(op model.Operation, percent int) {
	token := s.token
	if token == "" {
		token = string(op)
	}
	s.hub.BroadcastProgress(token, op, percent)
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, token string) {
	client := &Client{
		Token: token,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Handle client messages (ping/pong)
		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		}
	}
}
