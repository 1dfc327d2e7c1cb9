package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/quickchat/internal/database"
	"github.com/thereayou/quickchat/internal/middleware"
)

type UserHandler struct {
	db *database.Database
}

func NewUserHandler(db *database.Database) *UserHandler {
	return &UserHandler{db: db}
}

// GetProfile возвращает профиль текущего пользователя
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	user, err := h.db.GetUser(userID.String())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"name":            user.Name,
		"profile_picture": user.ProfilePicture,
		"status":          user.Status,
		"last_active_at":  user.LastActiveAt,
		"created_at":      user.CreatedAt,
	})
}

// UpdateProfile обновляет профиль текущего пользователя
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		Username       string `json:"username"`
		Email          string `json:"email"`
		Name           string `json:"name"`
		ProfilePicture string `json:"profile_picture"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetUser(userID.String())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	// Username и email меняем только если они свободны
	if req.Username != "" && req.Username != user.Username {
		if _, err := h.db.FindUserByUsername(req.Username); err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username already taken"})
			return
		}
		user.Username = req.Username
	}

	if req.Email != "" && req.Email != user.Email {
		if _, err := h.db.FindUserByEmail(req.Email); err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already taken"})
			return
		}
		user.Email = req.Email
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.ProfilePicture != "" {
		user.ProfilePicture = req.ProfilePicture
	}

	if err := h.db.UpdateUser(user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"name":            user.Name,
		"profile_picture": user.ProfilePicture,
	})
}

// UpdateStatus обновляет статус и lastActive текущего пользователя
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		Status string `json:"status" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.UpdateStatus(userID.String(), req.Status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// SearchUsers ищет пользователей по username
func (h *UserHandler) SearchUsers(c *gin.Context) {
	query := c.Query("username")
	if len(query) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search query must be at least 3 characters"})
		return
	}

	users, err := h.db.SearchUsersByUsername(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}

	result := make([]gin.H, len(users))
	for i, user := range users {
		result[i] = gin.H{
			"username":        user.Username,
			"name":            user.Name,
			"profile_picture": user.ProfilePicture,
			"status":          user.Status,
		}
	}

	c.JSON(http.StatusOK, gin.H{"users": result})
}
