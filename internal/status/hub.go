package status

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 2 * time.Second
	clientSend = 16
)

type client struct {
	conn *websocket.Conn
	send chan Code
}

// Hub broadcasts status codes to websocket display clients. New clients
// receive the current code immediately.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	current Code
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		current: Boot,
	}
}

// Report records c and queues it for every client. Slow clients are dropped.
func (h *Hub) Report(c Code) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = c
	for cl := range h.clients {
		select {
		case cl.send <- c:
		default:
			h.removeLocked(cl)
		}
	}
}

// Current returns the last reported code.
func (h *Hub) Current() Code {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and streams codes as text
// messages.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("status client upgrade failed", "err", err)
		return
	}
	cl := &client{conn: conn, send: make(chan Code, clientSend)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	cl.send <- h.current
	h.mu.Unlock()

	go h.readPump(cl)
	h.writePump(cl)
}

func (h *Hub) writePump(cl *client) {
	defer cl.conn.Close()
	for c := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, []byte(c)); err != nil {
			h.remove(cl)
			return
		}
	}
}

// readPump only watches for the client going away.
func (h *Hub) readPump(cl *client) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			h.remove(cl)
			return
		}
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(cl)
}

func (h *Hub) removeLocked(cl *client) {
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}
