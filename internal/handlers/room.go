package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/quickchat/internal/database"
	"github.com/thereayou/quickchat/internal/handlers/dto"
	"github.com/thereayou/quickchat/internal/middleware"
	"github.com/thereayou/quickchat/internal/models"
	"github.com/thereayou/quickchat/internal/relay"
)

type RoomHandler struct {
	db       *database.Database
	registry *relay.Registry
}

func NewRoomHandler(db *database.Database, registry *relay.Registry) *RoomHandler {
	return &RoomHandler{db: db, registry: registry}
}

// GetMyRooms возвращает комнаты пользователя, свежие первыми
func (h *RoomHandler) GetMyRooms(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	rooms, err := h.db.FindRoomsContaining(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get rooms"})
		return
	}

	now := time.Now()
	result := make([]gin.H, len(rooms))
	for i, room := range rooms {
		response := h.formatRoomResponse(&room, now)
		result[i] = response
	}

	c.JSON(http.StatusOK, gin.H{"rooms": result})
}

// CreateRoom создает комнату с указанным пользователем.
// Повторный запрос для той же пары возвращает существующую комнату.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		Username string `json:"username" binding:"required"`
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

	if req.Username == user.Username {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot create room with yourself"})
		return
	}

	other, err := h.db.FindUserByUsername(req.Username)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	room, created, err := h.db.GetOrCreateRoom(user, other)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, h.formatRoomResponse(room, time.Now()))
}

// GetRoom возвращает одну комнату; доступна только ее участникам
func (h *RoomHandler) GetRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID := c.Param("id")

	room, err := h.db.GetRoom(roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if !room.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	c.JSON(http.StatusOK, h.formatRoomResponse(room, time.Now()))
}

// UpdateLastMessage обновляет сводку последнего сообщения комнаты
func (h *RoomHandler) UpdateLastMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID := c.Param("id")

	room, err := h.db.GetRoom(roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if !room.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	var req dto.LastMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sentAt := req.Timestamp
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	if err := h.db.UpdateLastMessage(room.ID, req.Text, req.Sender, sentAt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update last message"})
		return
	}

	updated, err := h.db.GetRoom(roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	c.JSON(http.StatusOK, h.formatRoomResponse(updated, time.Now()))
}

// formatRoomResponse собирает ответ для комнаты. Истекшее lastMessage
// не показываем — срок жизни сообщений комнаты уже прошел.
func (h *RoomHandler) formatRoomResponse(room *models.Room, now time.Time) gin.H {
	participants := make([]gin.H, len(room.Participants))
	for i, p := range room.Participants {
		participants[i] = gin.H{
			"id":              p.ID,
			"username":        p.Username,
			"name":            p.Name,
			"profile_picture": p.ProfilePicture,
			"status":          p.Status,
		}
	}

	response := gin.H{
		"id":                  room.ID,
		"participants":        participants,
		"message_expiry_time": room.MessageExpiryTime,
		"is_active":           room.IsActive,
		"created_at":          room.CreatedAt,
		"updated_at":          room.UpdatedAt,
		"online_count":        h.registry.Count(room.ID),
	}

	if room.LastMessageAt != nil {
		deadline := relay.Deadline(*room.LastMessageAt, room.MessageExpiry())
		if !relay.IsExpired(deadline, now) {
			response["last_message"] = gin.H{
				"text":       room.LastMessageText,
				"sender":     room.LastMessageSender,
				"timestamp":  room.LastMessageAt,
				"expires_at": deadline,
			}
		}
	}

	return response
}
