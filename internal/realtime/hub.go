package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Envelope is the frame pushed to websocket subscribers.
type Envelope struct {
	Type    string      `json:"type"`
	OrderID uuid.UUID   `json:"order_id"`
	Data    interface{} `json:"data"`
}

type broadcast struct {
	orderID uuid.UUID
	payload []byte
}

// Hub keeps websocket subscribers grouped by order id.
type Hub struct {
	subscribers map[uuid.UUID]map[*Client]struct{}
	register    chan *Client
	unregister  chan *Client
	broadcast   chan broadcast
	done        chan struct{}
	lock        sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan broadcast, 256),
		done:        make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast requests until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.lock.Lock()
			if h.subscribers[client.orderID] == nil {
				h.subscribers[client.orderID] = make(map[*Client]struct{})
			}
			h.subscribers[client.orderID][client] = struct{}{}
			h.lock.Unlock()
			log.Debug().Str("order_id", client.orderID.String()).Msg("websocket subscriber registered")
		case client := <-h.unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			h.lock.Lock()
			for client := range h.subscribers[msg.orderID] {
				select {
				case client.send <- msg.payload:
				default:
					// slow consumer
					h.removeLocked(client)
				}
			}
			h.lock.Unlock()
		}
	}
}

// Publish queues v for every subscriber of orderID.
func (h *Hub) Publish(ctx context.Context, orderID uuid.UUID, eventType string, v interface{}) error {
	payload, err := json.Marshal(Envelope{Type: eventType, OrderID: orderID, Data: v})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- broadcast{orderID: orderID, payload: payload}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnStatusChange pushes the change to subscribers of the order.
func (h *Hub) OnStatusChange(ctx context.Context, change StatusChange) error {
	return h.Publish(ctx, change.OrderID, "status_changed", change)
}

func (h *Hub) SubscriberCount(orderID uuid.UUID) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.subscribers[orderID])
}

// ServeOrder upgrades the request and subscribes the connection to orderID.
func (h *Hub) ServeOrder(w http.ResponseWriter, r *http.Request, orderID uuid.UUID) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize), orderID: orderID}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()
	return nil
}

func (h *Hub) remove(client *Client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.subscribers[client.orderID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.subscribers, client.orderID)
	}
}

func (h *Hub) closeAll() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for _, clients := range h.subscribers {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// Client is one websocket connection subscribed to one order.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	orderID uuid.UUID
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; subscribers never send data.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
