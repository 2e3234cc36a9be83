package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/fingertrain/internal/control"
	"github.com/ayusman/fingertrain/internal/logging"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// StateHandler streams control state to WebSocket clients. Each client gets
// its own latest-value subscription, so a slow client skips states instead of
// stalling the frame loop. ?format=cbor switches to binary CBOR frames.
type StateHandler struct {
	cell     *control.Cell
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients int
}

// NewStateHandler creates a StateHandler over cell.
func NewStateHandler(cell *control.Cell, log *logging.Logger) *StateHandler {
	return &StateHandler{
		cell: cell,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow local connections
			},
		},
	}
}

// Clients returns the number of connected clients.
func (h *StateHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

func (h *StateHandler) track(delta int) {
	h.mu.Lock()
	h.clients += delta
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams state until the client leaves.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format, err := control.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	h.track(1)
	defer h.track(-1)

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	states, cancel := h.cell.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go h.write(conn, states, format, done)

	// Drain client messages so pongs and close frames are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
}

func (h *StateHandler) write(conn *websocket.Conn, states <-chan control.State, format control.Format, done <-chan struct{}) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	messageType := websocket.TextMessage
	if format == control.FormatCBOR {
		messageType = websocket.BinaryMessage
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case s, ok := <-states:
			if !ok {
				return
			}
			payload, err := control.Encode(s, format)
			if err != nil {
				h.log.Warn("encode state failed", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(messageType, payload); err != nil {
				conn.Close()
				return
			}
		}
	}
}
