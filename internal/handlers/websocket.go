package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	ws "github.com/thereayou/quickchat/internal/websocket"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	eventHandler *EventHandler
	upgrader     websocket.Upgrader
}

func NewWebSocketHandler(eventHandler *EventHandler) *WebSocketHandler {
	return &WebSocketHandler{
		eventHandler: eventHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Проверить origin в prod
				return true
			},
		},
	}
}

// HandleWebSocket апгрейдит соединение. Аутентификация происходит позже,
// на каждом room_join с токеном.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(conn)

	go client.WritePump()
	go client.ReadPump(h.eventHandler)
}
