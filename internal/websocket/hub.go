package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/Tim-Alpha/video-description-api/internal/model"
)

// Client represents a WebSocket client subscribed to one task.
type Client struct {
	TaskID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans task progress out to subscribed WebSocket clients. The polling
// endpoint remains the source of truth; the stream is additive.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	TaskID  string
	Message []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.TaskID] == nil {
				h.clients[client.TaskID] = make(map[*Client]bool)
			}
			h.clients[client.TaskID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.TaskID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.TaskID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.TaskID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastProgress pushes a progress update to a task's subscribers.
func (h *Hub) BroadcastProgress(taskID string, status model.TaskStatus, progress int, step string) {
	h.send(taskID, model.TaskProgressMessage{
		Type:        "progress",
		TaskID:      taskID,
		Status:      status,
		Progress:    progress,
		CurrentStep: step,
	})
}

// BroadcastComplete announces a completed task.
func (h *Hub) BroadcastComplete(taskID string) {
	h.send(taskID, model.TaskProgressMessage{
		Type:     "complete",
		TaskID:   taskID,
		Status:   model.TaskStatusCompleted,
		Progress: 100,
	})
}

// BroadcastError announces a failed task.
func (h *Hub) BroadcastError(taskID, errMsg string) {
	h.send(taskID, model.TaskProgressMessage{
		Type:   "error",
		TaskID: taskID,
		Status: model.TaskStatusError,
		Error:  errMsg,
	})
}

// send marshals and enqueues without blocking; updates are dropped when
// the hub is saturated or not running.
func (h *Hub) send(taskID string, msg model.TaskProgressMessage) {
	if h == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal progress message: %v", err)
		return
	}
	select {
	case h.broadcast <- &broadcastMessage{TaskID: taskID, Message: data}:
	default:
	}
}

// HandleConnection serves one subscriber connection until it closes.
func (h *Hub) HandleConnection(conn *websocket.Conn, taskID string) {
	client := &Client{
		TaskID: taskID,
		Conn:   conn,
		Send:   make(chan []byte, 16),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
