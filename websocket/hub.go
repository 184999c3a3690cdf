package websocket

import (
	"log"
	"sync"

	"github.com/anjiri1684/psych_admin/models"
	"github.com/gofiber/contrib/websocket"
)

const EventQuestionsChanged = "questions_changed"

type Event struct {
	Type     string          `json:"type"`
	TestType models.TestType `json:"test_type,omitempty"`
}

// Hub fans dashboard events out to every connected admin page.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	mu         sync.RWMutex
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan Event
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan Event, 32),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = struct{}{}
			h.mu.Unlock()
			log.Printf("Dashboard connected (%d open)", h.Count())
		case conn := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
		case event := <-h.broadcast:
			h.mu.RLock()
			var failed []*websocket.Conn
			for conn := range h.clients {
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("Error sending %s to dashboard: %v", event.Type, err)
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()
			if len(failed) > 0 {
				h.mu.Lock()
				for _, conn := range failed {
					delete(h.clients, conn)
					conn.Close()
				}
				h.mu.Unlock()
			}
		case <-h.done:
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// QuestionsChanged queues an event. It never blocks the request that caused
// it; when the queue is full the event is dropped and pages catch up on
// their next refresh.
func (h *Hub) QuestionsChanged(testType models.TestType) {
	select {
	case h.broadcast <- Event{Type: EventQuestionsChanged, TestType: testType}:
	default:
		log.Printf("⚠️ Dropped %s event for %s: hub queue full", EventQuestionsChanged, testType)
	}
}

// Serve keeps one connection registered until the page closes it.
func (h *Hub) Serve(conn *websocket.Conn) {
	if !h.join(conn) {
		conn.Close()
		return
	}
	defer func() {
		h.leave(conn)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// join reports false once the hub has stopped.
func (h *Hub) join(conn *websocket.Conn) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}
