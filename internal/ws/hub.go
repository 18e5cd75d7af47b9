package ws

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Event is one message pushed to subscribers of a topic.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type topicEvent struct {
	topic string
	event Event
}

// Hub fans kitchen events out to connected clients, grouped by topic.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *topicEvent
	stopped    chan struct{} // closed when Run returns

	mu  sync.RWMutex
	log logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *topicEvent, 256),
		stopped:    make(chan struct{}),
		log:        log,
	}
}

// Run processes registrations and broadcasts until done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			h.closeAll()
			close(h.stopped)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.topic] == nil {
				h.rooms[client.topic] = make(map[*Client]bool)
			}
			h.rooms[client.topic][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case te := <-h.broadcast:
			message, err := json.Marshal(te.event)
			if err != nil {
				h.log.WithError(err).WithField("type", te.event.Type).Error("marshal event")
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[te.topic] {
				select {
				case client.send <- message:
				default:
					// slow consumer
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join registers c. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

// leave unregisters c; after the hub has stopped it returns at once.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.topic]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.topic)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.drop(client)
		}
	}
}

// Broadcast queues event for every client subscribed to topic. It never
// blocks the caller; when the queue is full the event is discarded.
func (h *Hub) Broadcast(topic string, event Event) {
	select {
	case h.broadcast <- &topicEvent{topic: topic, event: event}:
	default:
		h.log.WithFields(logrus.Fields{"topic": topic, "type": event.Type}).Warn("event queue full, event dropped")
	}
}

// Subscribers returns the number of clients currently on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}
