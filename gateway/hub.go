package gateway

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/amrhady2/go-logix-cip/logix"
)

// broadcastHub fans out poll-loop snapshots to every connected websocket
// client. Each write is synchronous, so a slow reader delays the caller;
// a client whose write fails is removed.
type broadcastHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newBroadcastHub() *broadcastHub {
	return &broadcastHub{clients: make(map[*websocket.Conn]bool)}
}

func (h *broadcastHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *broadcastHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *broadcastHub) broadcast(values []logix.TagValue) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(values); err != nil {
			go h.remove(conn)
		}
	}
}
