package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 512 * 1024 // 512KB
)

var ErrQueueFull = errors.New("client message queue is full")

type EventType string

const (
	EventJoinRoom   EventType = "room_join"
	EventRoomJoined EventType = "room_joined"
	EventLeaveRoom  EventType = "room_leave"
	EventMessage    EventType = "message"
	EventError      EventType = "error"
	EventPing       EventType = "ping"
	EventPong       EventType = "pong"
)

// Event — кадр протокола поверх WebSocket. Токен приходит вместе с join,
// соединение до первого join анонимно.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	Token     string          `json:"token,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type EventHandler interface {
	HandleEvent(client *Client, ev *Event) error
	// HandleDisconnect вызывается один раз при разрыве соединения
	HandleDisconnect(client *Client)
}

type Client struct {
	id   uuid.UUID
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 256),
	}
}

func (c *Client) ID() uuid.UUID { return c.id }

// Deliver кладет кадр в исходящую очередь, не блокируясь.
// Переполненная очередь или закрытое соединение — потеря кадра.
func (c *Client) Deliver(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrQueueFull
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump читает события от клиента
func (c *Client) ReadPump(handler EventHandler) {
	defer func() {
		handler.HandleDisconnect(c)
		c.closeSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev Event
		err := c.conn.ReadJSON(&ev)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if ev.Type == EventPong {
			continue
		}

		if err := handler.HandleEvent(c, &ev); err != nil {
			log.Printf("Error handling %s event: %v", ev.Type, err)
			c.SendError(err.Error())
		}
	}
}

// WritePump отправляет кадры клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// SendEvent сериализует и отправляет событие клиенту.
func (c *Client) SendEvent(evType EventType, roomID *uuid.UUID, data interface{}) error {
	ev := Event{
		Type:      evType,
		RoomID:    roomID,
		Timestamp: time.Now(),
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		ev.Data = raw
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.Deliver(payload)
}

func (c *Client) SendError(errorMsg string) {
	c.SendEvent(EventError, nil, map[string]string{"error": errorMsg})
}
