// Package websocket pushes NOTAM refresh events to explorer clients.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/co-notam/pkg/logger"
)

// Message types
const (
	MessageTypeNotamsUpdated = "notams_updated" // Server announces a completed refresh
	MessageTypeRefreshFailed = "refresh_failed" // Server announces a failed refresh
	MessageTypeFilterUpdate  = "filter_update"  // Client sends the airports it follows
	MessageTypeWelcome       = "welcome"        // Server greets a new client
)

const writeWait = 10 * time.Second

// Message represents a WebSocket message
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// ClientFilters represents the active filters for a WebSocket client
type ClientFilters struct {
	Airports map[string]bool `json:"airports"` // upper-case ICAO -> followed
}

// Client represents a WebSocket client
type Client struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
	filters   *ClientFilters // Active filters for this client
}

// Server represents a WebSocket server
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
	done       chan struct{} // closed when Run returns
}

// NewServer creates a new WebSocket server
func NewServer(logger *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 16),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		logger: logger.Named("web-socket"),
	}
}

// ClientCount returns the number of registered clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run starts the WebSocket hub loop until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				s.dropLocked(client)
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			s.dropLocked(client)
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			delivered, slow := 0, []*Client(nil)
			s.mu.RLock()
			for client := range s.clients {
				if !s.shouldSendToClient(client, message) {
					continue
				}
				if client.SendMessage(message) {
					delivered++
				} else {
					slow = append(slow, client)
				}
			}
			s.mu.RUnlock()

			// A client whose queue is full is too slow to keep; it reconnects and refetches
			if len(slow) > 0 {
				s.mu.Lock()
				for _, client := range slow {
					s.dropLocked(client)
				}
				s.mu.Unlock()
			}
			s.logger.Debug("Broadcast delivered",
				logger.String("message_type", message.Type),
				logger.Int("delivered", delivered),
				logger.Int("dropped_clients", len(slow)))
		}
	}
}

// dropLocked removes a client and closes its send queue. s.mu must be held.
func (s *Server) dropLocked(client *Client) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	client.mu.Lock()
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	client.mu.Unlock()
}

// HandleConnection handles a WebSocket connection
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan *Message, 256),
		server:    s,
		closeChan: make(chan struct{}),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}
	s.logger.Debug("WebSocket client connected",
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("user_agent", r.UserAgent()))
	client.SendMessage(&Message{Type: MessageTypeWelcome, Data: map[string]any{
		"subscribable": []string{MessageTypeNotamsUpdated, MessageTypeRefreshFailed},
	}})

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for all connected clients
func (s *Server) Broadcast(message *Message) {
	select {
	case s.broadcast <- message:
	default:
		s.logger.Warn("Broadcast queue full, dropping message",
			logger.String("message_type", message.Type))
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message Message
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Error("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		switch message.Type {
		case MessageTypeFilterUpdate:
			filters := parseFilters(message.Data)
			c.UpdateFilters(filters)
			c.server.logger.Debug("Client filters updated", logger.Int("airports", len(filters.Airports)))
		default:
			c.server.logger.Debug("Ignoring client message", logger.String("type", message.Type))
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.server.logger.Error("Failed to marshal message", logger.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closeChan:
		return
	default:
	}
	close(c.closeChan)
	c.conn.Close()
}

// SendMessage sends a message to this specific client without blocking
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		// Channel is full, drop message
		return false
	}
}

// UpdateFilters updates the client's active filters
func (c *Client) UpdateFilters(filters *ClientFilters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = filters
}

// GetFilters returns a copy of the client's current filters
func (c *Client) GetFilters() *ClientFilters {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filters == nil {
		return nil
	}
	filtersCopy := &ClientFilters{Airports: make(map[string]bool, len(c.filters.Airports))}
	for code, enabled := range c.filters.Airports {
		filtersCopy.Airports[code] = enabled
	}
	return filtersCopy
}

// MatchesAirports reports whether any of the airports is followed by the client.
// A client without filters follows everything.
func (c *Client) MatchesAirports(airports []string) bool {
	filters := c.GetFilters()
	if filters == nil || len(filters.Airports) == 0 {
		return true
	}
	for _, code := range airports {
		if filters.Airports[strings.ToUpper(code)] {
			return true
		}
	}
	return false
}

func parseFilters(data map[string]any) *ClientFilters {
	filters := &ClientFilters{Airports: map[string]bool{}}
	list, _ := data["airports"].([]any)
	for _, item := range list {
		if code, ok := item.(string); ok && strings.TrimSpace(code) != "" {
			filters.Airports[strings.ToUpper(strings.TrimSpace(code))] = true
		}
	}
	return filters
}

// shouldSendToClient filters refresh events by the airports a client follows
func (s *Server) shouldSendToClient(client *Client, message *Message) bool {
	if message.Type != MessageTypeNotamsUpdated {
		return true
	}
	switch airports := message.Data["airports"].(type) {
	case []string:
		return client.MatchesAirports(airports)
	case []any:
		codes := make([]string, 0, len(airports))
		for _, a := range airports {
			if code, ok := a.(string); ok {
				codes = append(codes, code)
			}
		}
		return client.MatchesAirports(codes)
	default:
		return true
	}
}
