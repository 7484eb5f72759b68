// Package progress broadcasts discovery events to an optional attached
// viewer, adapted from BetterCallFirewall-Hackerecon's internal/websocket
// hub: one active client at a time, the same register/unregister/broadcast
// channel shape, renamed to the discovery domain's event vocabulary instead
// of raw proxied requests.
package progress

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventType names the discovery-engine milestones a viewer cares about.
type EventType string

const (
	EventNodeCreated    EventType = "node_created"
	EventNodeResolved   EventType = "node_resolved"
	EventNotFound       EventType = "not_found"
	EventCycleDetected  EventType = "cycle_detected"
	EventBudgetExceeded EventType = "budget_exceeded"
)

// Event is one broadcast message, matching the Message envelope the teacher
// hub already marshals, with Type reused for the discovery vocabulary above
// instead of "request".
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Hub manages a single active viewer connection. Only one websocket client
// is kept live at a time: a second connection bumps the first, exactly as
// the teacher's Hub does for its proxied-request viewer.
type Hub struct {
	client     *client
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mutex      sync.RWMutex
}

// NewHub returns a Hub; callers must run Run in its own goroutine before
// any viewer can connect.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Run drives the hub's single-goroutine event loop. It never returns: the
// hub has no shutdown signal of its own, so Run keeps going until the
// process exits, matching the teacher's Run.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mutex.Lock()
			if h.client != nil {
				close(h.client.send)
			}
			h.client = c
			h.mutex.Unlock()
			log.Printf("🔌 progress: viewer connected")

		case c := <-h.unregister:
			h.mutex.Lock()
			if h.client == c {
				close(h.client.send)
				h.client = nil
				log.Printf("🔌 progress: viewer disconnected")
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.RLock()
			if h.client != nil {
				select {
				case h.client.send <- message:
				default:
					log.Printf("🔌 progress: viewer send buffer full, dropping connection")
					close(h.client.send)
					h.client = nil
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// Broadcast safely delivers an event to the active viewer, if any. When no
// viewer is attached it is a cheap no-op so the discovery engine never
// blocks on an unattached progress hub.
func (h *Hub) Broadcast(eventType EventType, data interface{}) {
	h.mutex.RLock()
	attached := h.client != nil
	h.mutex.RUnlock()
	if !attached {
		return
	}

	payload, err := json.Marshal(Event{Type: eventType, Data: data, Timestamp: time.Now().Unix()})
	if err != nil {
		log.Printf("❌ progress: failed to marshal event %s: %v", eventType, err)
		return
	}
	h.broadcast <- payload
}

// ServeWS upgrades an HTTP request to the hub's single websocket viewer
// slot, matching the teacher's ServeWS.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ progress: websocket upgrade failed: %v", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ progress: readPump error: %v", err)
			}
			break
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
