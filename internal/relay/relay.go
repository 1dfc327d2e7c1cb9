package relay

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message — входящее сообщение от отправителя.
type Message struct {
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Delivery — кадр, который уходит каждому подписчику комнаты.
type Delivery struct {
	Type      string    `json:"type"`
	RoomID    uuid.UUID `json:"room_id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired сообщает, можно ли еще показывать сообщение.
func (d *Delivery) Expired(now time.Time) bool {
	return IsExpired(d.ExpiresAt, now)
}

// Ack — результат отправки. Warning заполняется, если durable-апдейт
// lastMessage не удалось поставить в очередь (мягкая ошибка).
type Ack struct {
	Delivered int       `json:"delivered"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expires_at"`
	Warning   string    `json:"warning,omitempty"`
}

// Relay принимает сообщение для комнаты, валидирует отправителя и рассылает
// его всем текущим подписчикам. Доставка best-effort: недоступный подписчик
// просто не получает сообщение.
type Relay struct {
	registry   *Registry
	dispatcher Dispatcher
	// Строгая проверка членства на каждом send. Выключается только
	// опцией WithLooseMembership для совместимости со старым поведением.
	strict bool
}

type Option func(*Relay)

// WithLooseMembership отключает повторную проверку членства при отправке.
// Старое поведение: членство проверялось только при join.
func WithLooseMembership() Option {
	return func(r *Relay) { r.strict = false }
}

func New(registry *Registry, dispatcher Dispatcher, opts ...Option) *Relay {
	r := &Relay{
		registry:   registry,
		dispatcher: dispatcher,
		strict:     true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send рассылает сообщение всем подписчикам комнаты, включая отправителя.
// После рассылки асинхронно обновляет Room.lastMessage; сбой постановки
// задачи не откатывает уже выполненную доставку.
func (r *Relay) Send(ctx context.Context, roomID, connID uuid.UUID, msg Message) (*Ack, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return nil, ErrInvalidMessage
	}

	sub, subscribed := r.registry.subscriber(roomID, connID)
	if r.strict && !subscribed {
		return nil, ErrNotAMember
	}
	if subscribed {
		// Имя отправителя всегда берем из проверенной личности
		msg.Sender = sub.identity.Username
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	expiry := DefaultMessageExpiry
	if e, ok := r.registry.roomExpiry(roomID); ok {
		expiry = e
	}

	delivery := Delivery{
		Type:      "message",
		RoomID:    roomID,
		Text:      msg.Text,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		ExpiresAt: Deadline(msg.Timestamp, expiry),
	}

	payload, err := json.Marshal(delivery)
	if err != nil {
		return nil, err
	}

	delivered := 0
	for _, ep := range r.registry.Subscribers(roomID) {
		// Каждая доставка независима: отказ одного подписчика
		// не трогает остальных
		if err := ep.Deliver(payload); err != nil {
			log.Printf("Dropped message for endpoint %s in room %s: %v", ep.ID(), roomID, err)
			continue
		}
		delivered++
	}

	ack := &Ack{
		Delivered: delivered,
		Timestamp: delivery.Timestamp,
		ExpiresAt: delivery.ExpiresAt,
	}

	lm := LastMessage{
		RoomID: roomID,
		Text:   msg.Text,
		Sender: msg.Sender,
		SentAt: msg.Timestamp,
		Expiry: expiry,
	}
	if err := r.dispatcher.DispatchLastMessage(ctx, lm); err != nil {
		log.Printf("Failed to dispatch lastMessage update for room %s: %v", roomID, err)
		ack.Warning = ErrDirectoryUnavailable.Error()
	}

	return ack, nil
}
