package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"salesdash/internal/config"
	"salesdash/internal/infrastructure"
	"salesdash/pkg/contracts/events"
)

// broadcastBuffer is how many messages may wait for the hub loop before
// new ones are dropped
const broadcastBuffer = 256

// SnapshotSource returns the runs a newly connected client should see
type SnapshotSource func() []*events.RunSnapshot

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu       sync.RWMutex
	logger   *slog.Logger
	metrics  *OTelMetrics
	upgrader websocket.Upgrader

	snapshots  SnapshotSource
	pingPeriod time.Duration
	pongWait   time.Duration

	totalConnections int64
	messagesSent     int64
	droppedMessages  int64

	quit     chan struct{}
	done     chan struct{}
	running  bool
	stopOnce sync.Once
}

// NewHub creates a hub configured from the WebSocket settings
func NewHub(cfg config.WebSocketConfig, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = config.WebSocketPongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = (cfg.PongWait * 9) / 10
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		pingPeriod: cfg.PingPeriod,
		pongWait:   cfg.PongWait,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// SetMetrics attaches OpenTelemetry instruments
func (h *Hub) SetMetrics(m *OTelMetrics) {
	h.metrics = m
}

// SetSnapshotSource sets what a client receives right after connecting
func (h *Hub) SetSnapshotSource(source SnapshotSource) {
	h.snapshots = source
}

// Start runs the hub loop in its own goroutine
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop ends the hub loop and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)

		h.mu.RLock()
		running := h.running
		h.mu.RUnlock()
		if running {
			<-h.done
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.running = false
	})
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalConnections++
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.InfoContext(client.context(), "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))
			h.metrics.RecordConnection(ctx, count)
			h.greet(client)

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				h.logger.InfoContext(client.context(), "Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
				h.metrics.RecordDisconnection(ctx, time.Since(client.connectedAt), "closed", count)
			}

		case message := <-h.broadcast:
			h.fanOut(ctx, message)
		}
	}
}

// fanOut delivers message to every client. A client whose buffer is full
// is disconnected.
func (h *Hub) fanOut(ctx context.Context, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
			h.messagesSent++
		default:
			close(client.send)
			delete(h.clients, client)
			h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
			h.metrics.RecordDisconnection(ctx, time.Since(client.connectedAt), "slow_consumer", len(h.clients))
		}
	}
}

// greet sends the connect message followed by the known run snapshots
func (h *Hub) greet(client *Client) {
	messages := []events.WebSocketMessage{
		newMessage(events.MessageTypeConnect, map[string]interface{}{
			"status":    "connected",
			"client_id": client.id,
		}),
	}
	if h.snapshots != nil {
		for _, snapshot := range h.snapshots() {
			messages = append(messages, newMessage(events.MessageTypeRunSnapshot, snapshot))
		}
	}

	for _, msg := range messages {
		msg.TraceID = client.traceID
		payload, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("Error marshaling greeting", slog.String("error", err.Error()))
			continue
		}
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("Client buffer full during greeting",
				slog.String("client_id", client.id))
			return
		}
	}
}

// BroadcastUpdate sends a run event to every client. It never blocks: when
// the hub is backed up the message is dropped.
func (h *Hub) BroadcastUpdate(eventType, runID, status string, data interface{}) {
	payload, err := json.Marshal(newMessage(events.MessageType(eventType), data))
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", eventType),
			slog.String("run_id", runID))
		return
	}

	select {
	case h.broadcast <- payload:
		h.logger.Debug("Queued broadcast",
			slog.String("message_type", eventType),
			slog.String("run_id", runID),
			slog.String("status", status),
			slog.Int("payload_size", len(payload)))
	case <-h.quit:
	default:
		h.mu.Lock()
		h.droppedMessages++
		h.mu.Unlock()
		h.logger.Warn("Broadcast queue full, dropping message",
			slog.String("message_type", eventType),
			slog.String("run_id", runID))
		h.metrics.RecordDroppedMessage(context.Background(), "hub_queue_full")
	}
}

// ServeHTTP upgrades the request and attaches a new client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
		return
	}

	client := NewClient(h, NewConnectionWrapper(conn), middleware.GetReqID(r.Context()), h.logger)
	if !h.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// Register adds a client. It returns false once the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetHubMetrics returns current hub counters
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"dropped_messages":  h.droppedMessages,
		"broadcast_queue":   len(h.broadcast),
	}
}

func newMessage(t events.MessageType, data interface{}) events.WebSocketMessage {
	return events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.NewString(),
			Type:      t,
			Timestamp: time.Now().UTC(),
		},
		Data: data,
	}
}
