package controlplane

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Broadcast is one message pushed to every connected dashboard client.
type Broadcast struct {
	Type string      `json:"type"` // "file_event", "quarantine", "restore", "config_updated"
	Data interface{} `json:"data"`
}

// Hub fans Broadcast messages out to every connected websocket client via
// the standard register/unregister/broadcast channel loop, applied here
// to this project's live-event feed.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Broadcast
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	log        *logrus.Entry
}

// NewHub builds a Hub. Run must be started in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Broadcast, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logrus.WithField("component", "controlplane"),
	}
}

// Run processes register/unregister/broadcast events until stop fires.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			h.log.WithField("clients", len(h.clients)).Debug("dashboard client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					h.log.WithError(err).Debug("websocket write failed, dropping client")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues msg for delivery to every connected client. It never
// blocks the caller past the broadcast channel's buffer.
func (h *Hub) Publish(msg Broadcast) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast buffer full, dropping live update")
	}
}

// ServeWS upgrades the request to a websocket and registers the
// connection with the hub until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	h.register <- conn

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
