package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Endpoint — живое соединение подписчика. Deliver не должен блокироваться:
// медленный получатель просто теряет сообщение.
type Endpoint interface {
	ID() uuid.UUID
	Deliver(payload []byte) error
}

// Identity — проверенная личность пользователя.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// Verifier проверяет credential и возвращает личность пользователя.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// RoomInfo — срез данных комнаты, нужный реестру.
type RoomInfo struct {
	ID            uuid.UUID
	Participants  []uuid.UUID
	MessageExpiry time.Duration
}

// Directory — durable-хранилище комнат (внешний коллаборатор).
type Directory interface {
	RoomInfo(ctx context.Context, roomID uuid.UUID) (*RoomInfo, error)
}

// LastMessage — сводка последнего сообщения для асинхронного апдейта Directory.
type LastMessage struct {
	RoomID uuid.UUID
	Text   string
	Sender string
	SentAt time.Time
	Expiry time.Duration
}

// Dispatcher ставит фоновую задачу на обновление Room.lastMessage.
// Ошибка постановки не влияет на уже выполненную рассылку.
type Dispatcher interface {
	DispatchLastMessage(ctx context.Context, lm LastMessage) error
}
