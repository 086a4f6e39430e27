package httpapi

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haltline/intervention-controller/internal/timeline"
)

const maxWSConnections = 200

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans out recently recorded activity to connected debug/operator
// websocket clients. One broadcaster ticker, not one per connection.
type Hub struct {
	tl      *timeline.Store
	clients map[*websocket.Conn]struct{}
	mu      sync.RWMutex
	last    int
}

// NewHub builds a Hub reading off tl.
func NewHub(tl *timeline.Store) *Hub {
	return &Hub{tl: tl, clients: make(map[*websocket.Conn]struct{})}
}

// Run starts the hub's broadcast loop; it returns when ctx is done.
func (h *Hub) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			h.shutdown()
			return
		case <-ticker.C:
			h.broadcast()
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxWSConnections {
		return false
	}
	h.clients[conn] = struct{}{}
	return true
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *Hub) broadcast() {
	events := h.tl.GetAllEvents()
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(events); err != nil {
			log.Printf("httpapi: websocket write error: %v", err)
			go h.unregister(conn)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

// StartHub launches the websocket broadcast loop in the background until
// stop is closed.
func (a *API) StartHub(stop <-chan struct{}) {
	go a.wsHub.Run(stop)
}

// handleActivityStream upgrades to a websocket and registers the
// connection with the hub for periodic activity pushes.
func (a *API) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}

	if !a.wsHub.register(conn) {
		conn.Close()
		return
	}
	defer a.wsHub.unregister(conn)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("httpapi: websocket error: %v", err)
			}
			break
		}
	}
}
