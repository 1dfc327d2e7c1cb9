package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Username       string    `gorm:"uniqueIndex;not null"`
	Email          string    `gorm:"uniqueIndex;not null"`
	PasswordHash   string    `gorm:"not null"`
	Name           string
	ProfilePicture string
	Status         string `gorm:"default:'online'"`
	LastActiveAt   time.Time
	CreatedAt      time.Time
}
