package database

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thereayou/quickchat/internal/relay"
)

// Directory — адаптер к relay.Directory поверх gorm-хранилища.
type Directory struct {
	db *Database
}

func NewDirectory(db *Database) *Directory {
	return &Directory{db: db}
}

var _ relay.Directory = (*Directory)(nil)

func (d *Directory) RoomInfo(_ context.Context, roomID uuid.UUID) (*relay.RoomInfo, error) {
	room, err := d.db.GetRoom(roomID.String())
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, relay.ErrRoomNotFound
		}
		return nil, relay.ErrDirectoryUnavailable
	}

	participants := make([]uuid.UUID, 0, len(room.Participants))
	for _, p := range room.Participants {
		participants = append(participants, p.ID)
	}

	return &relay.RoomInfo{
		ID:            room.ID,
		Participants:  participants,
		MessageExpiry: room.MessageExpiry(),
	}, nil
}
