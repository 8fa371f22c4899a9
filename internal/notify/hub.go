package notify

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opinix/trading-engine/internal/metrics"
)

// wsEnvelope is the JSON frame sent to websocket clients.
type wsEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// clientCommand is a frame received from a client. Clients subscribe to
// rooms explicitly; everything else they receive comes from global
// broadcasts.
type clientCommand struct {
	Action string `json:"action"` // "join_room" or "leave_room"
	Room   string `json:"room"`
}

type outbound struct {
	room string // empty = all clients
	data []byte
}

// Hub manages websocket connections and their room subscriptions, and
// broadcasts domain events to all clients or to a single room.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]map[string]bool // conn → joined rooms

	broadcast  chan outbound
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

// NewHub creates a new websocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]map[string]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = make(map[string]bool)
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			slog.Info("ws client connected", "total", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))

		case msg := <-h.broadcast:
			var dead []*websocket.Conn
			h.mu.RLock()
			for conn, rooms := range h.clients {
				if msg.room != "" && !rooms[msg.room] {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					dead = append(dead, conn)
				}
			}
			h.mu.RUnlock()
			if len(dead) > 0 {
				h.mu.Lock()
				for _, conn := range dead {
					conn.Close()
					delete(h.clients, conn)
				}
				total := len(h.clients)
				h.mu.Unlock()
				metrics.WebSocketClients.Set(float64(total))
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var errBufferFull = errors.New("notify: broadcast buffer full, message dropped")

// BroadcastToAll sends a named event to every connected client.
func (h *Hub) BroadcastToAll(event string, payload any) error {
	return h.send("", event, payload)
}

// BroadcastToRoom sends a named event to clients joined to room.
func (h *Hub) BroadcastToRoom(room, event string, payload any) error {
	return h.send(room, event, payload)
}

func (h *Hub) send(room, event string, payload any) error {
	data, err := json.Marshal(wsEnvelope{Event: event, Data: payload})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- outbound{room: room, data: data}:
		return nil
	default:
		// Drop rather than block the business operation behind a slow hub.
		return errBufferFull
	}
}

func (h *Hub) joinRoom(conn *websocket.Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rooms, ok := h.clients[conn]; ok {
		rooms[room] = true
	}
}

func (h *Hub) leaveRoom(conn *websocket.Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rooms, ok := h.clients[conn]; ok {
		delete(rooms, room)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles websocket upgrade requests at GET /ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- conn

	// Read pump: handle room subscriptions and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var cmd clientCommand
			if json.Unmarshal(data, &cmd) != nil || cmd.Room == "" {
				continue
			}
			switch cmd.Action {
			case "join_room":
				h.joinRoom(conn, cmd.Room)
			case "leave_room":
				h.leaveRoom(conn, cmd.Room)
			}
		}
	}()

	// Ping ticker to keep the connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}

var _ Broadcaster = (*Hub)(nil)
