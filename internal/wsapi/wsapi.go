// Package wsapi serves the coordinator's listen-only event stream over
// WebSocket, upgrading with gorilla/websocket the way
// WebSocketRPCClient dials and reads in
// src/chainadapter/rpc/websocket.go — here the server side of that same
// connect-then-read-loop shape, fanning eventbus.Event values out to
// the connection instead of reading JSON-RPC notifications off one.
package wsapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/0xproject/coordinator-server/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// wireEvent is the {type, data} envelope every notification is sent as.
type wireEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Handler upgrades GET /v2/requests?chainId=<int> connections and
// streams that chain's eventbus.Events to them until the client
// disconnects.
type Handler struct {
	bus *eventbus.Bus
	log *zap.Logger
}

// NewHandler builds a wsapi Handler over bus.
func NewHandler(bus *eventbus.Bus, log *zap.Logger) *Handler {
	return &Handler{bus: bus, log: log}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseInt(r.URL.Query().Get("chainId"), 10, 64)
	if err != nil {
		http.Error(w, "chainId query parameter must be an integer", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	subID, events := h.bus.Subscribe(chainID)
	defer h.bus.Unsubscribe(chainID, subID)

	// A listen-only stream still needs to drain whatever the peer sends
	// (including close frames and pings); discard anything it writes.
	go drainIncoming(conn)

	for event := range events {
		if err := writeEvent(conn, event); err != nil {
			h.log.Debug("websocket write failed, closing subscriber", zap.Error(err), zap.Int64("chainId", chainID))
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event eventbus.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(wireEvent{Type: string(event.Type), Data: event})
}

func drainIncoming(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
