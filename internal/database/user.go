package database

import (
	"time"

	"github.com/thereayou/quickchat/internal/models"
)

func (d *Database) SaveUser(user *models.User) error {
	return d.db.Create(user).Error
}

func (d *Database) UpdateUser(user *models.User) error {
	return d.db.Save(user).Error
}

func (d *Database) GetUser(id string) (*models.User, error) {
	user := models.User{}
	if err := d.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) FindUserByEmail(email string) (*models.User, error) {
	user := models.User{}
	if err := d.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) FindUserByUsername(username string) (*models.User, error) {
	user := models.User{}
	if err := d.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) SearchUsersByUsername(query string) ([]models.User, error) {
	var users []models.User
	err := d.db.
		Where("username ILIKE ?", "%"+query+"%").
		Limit(20).
		Find(&users).Error
	return users, err
}

func (d *Database) UpdateLastActive(id string) error {
	return d.db.Model(&models.User{}).Where("id = ?", id).Update("last_active_at", time.Now()).Error
}

func (d *Database) UpdateStatus(id, status string) error {
	return d.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "last_active_at": time.Now()}).Error
}
