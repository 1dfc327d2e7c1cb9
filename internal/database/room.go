package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thereayou/quickchat/internal/models"
)

func (d *Database) GetRoom(id string) (*models.Room, error) {
	var room models.Room
	if err := d.db.Preload("Participants").First(&room, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// FindRoomByParticipants ищет комнату по неупорядоченной паре участников.
func (d *Database) FindRoomByParticipants(a, b uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := d.db.
		Preload("Participants").
		Where("participant_key = ?", models.ParticipantKey(a, b)).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindRoomsContaining возвращает комнаты пользователя, свежие первыми.
func (d *Database) FindRoomsContaining(userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.
		Joins("JOIN room_participants rp ON rp.room_id = rooms.id").
		Where("rp.user_id = ?", userID).
		Order("rooms.updated_at DESC").
		Preload("Participants").
		Find(&rooms).Error
	return rooms, err
}

// GetOrCreateRoom возвращает комнату для пары участников, создавая ее при
// необходимости. Повторный вызов для той же пары идемпотентен; гонку двух
// одновременных созданий разрешает уникальный индекс по participant_key.
func (d *Database) GetOrCreateRoom(user, other *models.User) (*models.Room, bool, error) {
	if room, err := d.FindRoomByParticipants(user.ID, other.ID); err == nil {
		return room, false, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	room := models.Room{
		ParticipantKey:    models.ParticipantKey(user.ID, other.ID),
		Participants:      []models.User{*user, *other},
		MessageExpiryTime: models.DefaultMessageExpirySeconds,
		IsActive:          true,
	}

	if err := d.db.Create(&room).Error; err != nil {
		// Проиграли гонку создания — возвращаем выигравшую комнату
		if existing, ferr := d.FindRoomByParticipants(user.ID, other.ID); ferr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}

	return &room, true, nil
}

// UpdateLastMessage обновляет сводку последнего сообщения комнаты.
func (d *Database) UpdateLastMessage(roomID uuid.UUID, text, sender string, sentAt time.Time) error {
	res := d.db.Model(&models.Room{}).Where("id = ?", roomID).
		Updates(map[string]interface{}{
			"last_message_text":   text,
			"last_message_sender": sender,
			"last_message_at":     sentAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClearLastMessageIfStale очищает lastMessage, только если его не успело
// заменить более свежее сообщение.
func (d *Database) ClearLastMessageIfStale(roomID uuid.UUID, sentAt time.Time) error {
	return d.db.Model(&models.Room{}).
		Where("id = ? AND last_message_at IS NOT NULL AND last_message_at <= ?", roomID, sentAt).
		Updates(map[string]interface{}{
			"last_message_text":   "",
			"last_message_sender": "",
			"last_message_at":     nil,
		}).Error
}
