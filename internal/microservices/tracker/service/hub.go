package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/common/metrics"
	"restaurant-ordering/internal/domain"
)

const (
	writeWait  = 7 * time.Second
	readWait   = 70 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 32
	allOrders  = ""
)

// Hub fans status updates out to websocket clients. A client either watches
// one order (room = order id) or the whole board (room = "").
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	lg       *logger.Logger
}

// client owns a buffered outbox drained by its own writer; a client whose
// outbox is full is dropped instead of holding up the broadcaster.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
}

// enqueue never blocks. false means the client is gone or too slow.
func (c *client) enqueue(raw []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *client) drop() {
	c.once.Do(func() { close(c.done) })
}

// NewHub accepts upgrades from origins; an empty list accepts any origin.
func NewHub(origins []string, lg *logger.Logger) *Hub {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		lg: lg,
	}
}

func (h *Hub) add(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	if members == nil {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	metrics.TrackingClients.Inc()
}

func (h *Hub) remove(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	if _, ok := members[c]; !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	metrics.TrackingClients.Dec()
}

func (h *Hub) list(rooms ...string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*client
	for _, room := range rooms {
		for c := range h.rooms[room] {
			out = append(out, c)
		}
	}
	return out
}

// ClientCount reports connected clients across all rooms.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, members := range h.rooms {
		n += len(members)
	}
	return n
}

func (h *Hub) broadcast(orderID string, raw []byte) {
	rooms := []string{allOrders}
	if orderID != allOrders {
		rooms = append(rooms, orderID)
	}
	for _, room := range rooms {
		for _, c := range h.list(room) {
			if !c.enqueue(raw) {
				h.remove(room, c)
				c.drop()
				h.lg.Warn("tracking_client_dropped", map[string]any{"room": room})
			}
		}
	}
}

// StatusChanged lets the hub act as an events.Publisher in single-process setups.
func (h *Hub) StatusChanged(_ context.Context, msg domain.StatusUpdateMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.broadcast(msg.OrderID, raw)
	return nil
}

func (h *Hub) SendToKitchen(context.Context, domain.Order) error { return nil }

// Relay forwards notification deliveries (from the fanout exchange) to clients
// until deliveries closes or ctx ends.
func (h *Hub) Relay(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			var msg domain.StatusUpdateMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil || msg.OrderID == "" {
				h.lg.Warn("tracking_relay_skipped", map[string]any{"message_id": d.MessageId})
				continue
			}
			h.broadcast(msg.OrderID, d.Body)
		}
	}
}

// Serve upgrades the request and keeps the socket until the peer leaves or
// falls too far behind. ?order_id= narrows the feed to a single order.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	room := r.URL.Query().Get("order_id")
	c := newClient(conn)
	defer func() {
		h.remove(room, c)
		c.drop()
		_ = conn.Close()
	}()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	hello, err := json.Marshal(map[string]any{
		"type":     "hello",
		"order_id": room,
		"at":       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	c.enqueue(hello)
	h.add(room, c)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case raw := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
