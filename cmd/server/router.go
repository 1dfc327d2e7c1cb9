package main

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/thereayou/quickchat/internal/handlers"
	"github.com/thereayou/quickchat/internal/middleware"
	jwtauth "github.com/thereayou/quickchat/pkg/auth"
)

func APIEndpoints(
	r *gin.Engine,
	jwtMgr *jwtauth.JWTManager,
	rdb *redis.Client,
	authH *handlers.AuthHandler,
	userH *handlers.UserHandler,
	roomH *handlers.RoomHandler,
	wsH *handlers.WebSocketHandler,
) {
	// Auth endpoints
	auth := r.Group("/auth")
	{
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)
		auth.POST("/logout", authH.Logout)
	}

	// API endpoints
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtMgr, rdb))
	{
		users := api.Group("/users")
		{
			users.GET("/profile", userH.GetProfile)
			users.PUT("/profile", userH.UpdateProfile)
			users.PUT("/status", userH.UpdateStatus)
			users.GET("/search", userH.SearchUsers)
		}

		rooms := api.Group("/rooms")
		{
			rooms.GET("", roomH.GetMyRooms)
			rooms.POST("", roomH.CreateRoom)
			rooms.GET("/:id", roomH.GetRoom)
			rooms.PUT("/:id/last-message", roomH.UpdateLastMessage)
		}
	}

	// Аутентификация WebSocket происходит на room_join, не на апгрейде
	r.GET("/ws", wsH.HandleWebSocket)
}
