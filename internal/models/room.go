package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMessageExpirySeconds — срок жизни сообщений комнаты по умолчанию.
const DefaultMessageExpirySeconds = 60

type Room struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	// Канонический ключ пары участников. Уникальный индекс закрывает
	// гонку check-then-create при одновременном создании комнаты.
	ParticipantKey string `gorm:"uniqueIndex;not null"`
	Participants   []User `gorm:"many2many:room_participants"`

	LastMessageText   string
	LastMessageSender string
	LastMessageAt     *time.Time

	// Срок жизни сообщений в секундах
	MessageExpiryTime int  `gorm:"default:60"`
	IsActive          bool `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageExpiry возвращает messageExpiryTime как Duration.
func (r *Room) MessageExpiry() time.Duration {
	if r.MessageExpiryTime < 0 {
		return 0
	}
	return time.Duration(r.MessageExpiryTime) * time.Second
}

// HasParticipant проверяет, входит ли пользователь в пару участников.
func (r *Room) HasParticipant(userID uuid.UUID) bool {
	for _, p := range r.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// ParticipantKey строит канонический ключ для неупорядоченной пары участников.
func ParticipantKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	if ids[0] > ids[1] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	return strings.Join(ids, ":")
}
