package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/concept-map/backend/internal/diagram"
	"github.com/concept-map/backend/internal/metrics"
	"github.com/concept-map/backend/internal/models"
)

// WebSocket message types for the diagram protocol
const (
	// Client -> Server messages
	MsgTypeNodeMove    = "node:move"
	MsgTypeEdgeConnect = "edge:connect"
	MsgTypeNodeRemove  = "node:remove"
	MsgTypeEdgeRemove  = "edge:remove"
	MsgTypePing        = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeGraph     = "graph"
	MsgTypeAlert     = "alert"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 32

	// DefaultWSMaxMessage bounds a single client message
	DefaultWSMaxMessage int64 = 64 * 1024
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NodeMovePayload moves a node on the client's own view
type NodeMovePayload struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// IDPayload names a node or edge
type IDPayload struct {
	ID string `json:"id"`
}

// AlertPayload carries a user-facing message
type AlertPayload struct {
	Message string `json:"message"`
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type diagramClient struct {
	id        string
	conn      *websocket.Conn
	view      *diagram.View
	send      chan WSMessage
	done      chan struct{}
	closeOnce sync.Once
}

// enqueue queues msg for the write pump. A client that cannot keep up is
// disconnected rather than allowed to block publishers.
func (c *diagramClient) enqueue(msg WSMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		c.close()
		return false
	}
}

func (c *diagramClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// DiagramHub serves the diagram over WebSocket. Every connection renders the
// canonical graph in its own view; edits a client makes stay in that view.
// The hub is also the panel's notifier: alerts are broadcast to every client.
type DiagramHub struct {
	store      *diagram.Store
	upgrader   websocket.Upgrader
	maxMessage int64
	metrics    *metrics.Collector
	logger     *zap.Logger

	mu      sync.RWMutex
	clients map[string]*diagramClient
}

// NewDiagramHub creates a hub over store. maxMessage <= 0 selects
// DefaultWSMaxMessage.
func NewDiagramHub(store *diagram.Store, maxMessage int64, collector *metrics.Collector, logger *zap.Logger) *DiagramHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxMessage <= 0 {
		maxMessage = DefaultWSMaxMessage
	}
	return &DiagramHub{
		store: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		maxMessage: maxMessage,
		metrics:    collector,
		logger:     logger.Named("ws"),
		clients:    make(map[string]*diagramClient),
	}
}

// Clients returns the number of connected clients
func (h *DiagramHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Alert broadcasts a user-facing message to every client
func (h *DiagramHub) Alert(message string) {
	msg := WSMessage{
		Type:      MsgTypeAlert,
		Timestamp: time.Now().UnixMilli(),
		Payload:   mustJSON(AlertPayload{Message: message}),
	}

	h.mu.RLock()
	clients := make([]*diagramClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(msg)
	}
}

// Close disconnects every client
func (h *DiagramHub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*diagramClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// HandleWebSocket upgrades the connection and runs the diagram protocol until
// the client goes away
func (h *DiagramHub) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &diagramClient{
		id:   uuid.NewString(),
		conn: ws,
		view: diagram.NewView(),
		send: make(chan WSMessage, wsSendBuffer),
		done: make(chan struct{}),
	}
	ws.SetReadLimit(h.maxMessage)

	h.register(client)
	defer h.unregister(client)

	go h.writePump(client)

	client.enqueue(WSMessage{
		Type:      MsgTypeConnected,
		ID:        client.id,
		Timestamp: time.Now().UnixMilli(),
	})

	client.view.OnChange(func(s diagram.Snapshot) {
		client.enqueue(WSMessage{
			Type:      MsgTypeGraph,
			Timestamp: time.Now().UnixMilli(),
			Payload:   mustJSON(s),
		})
	})
	detach := client.view.Attach(h.store)
	defer detach()

	h.readLoop(client)
	return nil
}

func (h *DiagramHub) register(c *diagramClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.metrics.ClientConnected(1)
	h.logger.Debug("Client connected", zap.String("client", c.id))
}

func (h *DiagramHub) unregister(c *diagramClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
	h.metrics.ClientConnected(-1)
	h.logger.Debug("Client disconnected", zap.String("client", c.id))
}

func (h *DiagramHub) readLoop(c *diagramClient) {
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Connection error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		h.dispatch(c, msg)
	}
}

func (h *DiagramHub) dispatch(c *diagramClient, msg WSMessage) {
	switch msg.Type {
	case MsgTypePing:
		c.enqueue(WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()})

	case MsgTypeNodeMove:
		var p NodeMovePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ID == "" {
			h.sendError(c, "Invalid node:move payload", "INVALID_PAYLOAD")
			return
		}
		if err := c.view.MoveNode(p.ID, models.Position{X: p.X, Y: p.Y}); err != nil {
			h.sendError(c, err.Error(), "NODE_NOT_FOUND")
		}

	case MsgTypeEdgeConnect:
		var conn diagram.Connection
		if err := json.Unmarshal(msg.Payload, &conn); err != nil {
			h.sendError(c, "Invalid edge:connect payload", "INVALID_PAYLOAD")
			return
		}
		// Incomplete or duplicate connections are ignored, as the widget does
		c.view.Connect(conn)

	case MsgTypeNodeRemove:
		var p IDPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ID == "" {
			h.sendError(c, "Invalid node:remove payload", "INVALID_PAYLOAD")
			return
		}
		if err := c.view.RemoveNode(p.ID); err != nil {
			h.sendError(c, err.Error(), "NODE_NOT_FOUND")
		}

	case MsgTypeEdgeRemove:
		var p IDPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ID == "" {
			h.sendError(c, "Invalid edge:remove payload", "INVALID_PAYLOAD")
			return
		}
		if !c.view.RemoveEdge(p.ID) {
			h.sendError(c, "edge not found: "+p.ID, "EDGE_NOT_FOUND")
		}

	default:
		h.sendError(c, "Unknown message type: "+msg.Type, "INVALID_TYPE")
	}
}

func (h *DiagramHub) writePump(c *diagramClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				h.logger.Debug("Failed to send message", zap.String("client", c.id), zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

func (h *DiagramHub) sendError(c *diagramClient, message, code string) {
	c.enqueue(WSMessage{
		Type:      MsgTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload:   mustJSON(WSErrorResponse{Message: message, Code: code}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
