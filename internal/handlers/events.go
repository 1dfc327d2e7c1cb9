package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/thereayou/quickchat/internal/handlers/dto"
	"github.com/thereayou/quickchat/internal/relay"
	ws "github.com/thereayou/quickchat/internal/websocket"
)

// EventHandler связывает события WebSocket-протокола с ядром relay.
type EventHandler struct {
	registry *relay.Registry
	relay    *relay.Relay
}

func NewEventHandler(registry *relay.Registry, rl *relay.Relay) *EventHandler {
	return &EventHandler{registry: registry, relay: rl}
}

func (h *EventHandler) HandleEvent(client *ws.Client, ev *ws.Event) error {
	switch ev.Type {
	case ws.EventJoinRoom:
		return h.handleJoin(client, ev)

	case ws.EventLeaveRoom:
		if ev.RoomID == nil {
			return relay.ErrInvalidMessage
		}
		h.registry.Leave(*ev.RoomID, client.ID())
		return nil

	case ws.EventMessage:
		return h.handleMessage(client, ev)

	default:
		log.Printf("Unknown event type: %s", ev.Type)
		return nil
	}
}

// HandleDisconnect — неявный leave из всех комнат соединения.
func (h *EventHandler) HandleDisconnect(client *ws.Client) {
	h.registry.LeaveAll(client.ID())
}

func (h *EventHandler) handleJoin(client *ws.Client, ev *ws.Event) error {
	if ev.RoomID == nil {
		return relay.ErrInvalidMessage
	}

	identity, err := h.registry.Join(context.Background(), *ev.RoomID, ev.Token, client)
	if err != nil {
		return err
	}

	return client.SendEvent(ws.EventRoomJoined, ev.RoomID, map[string]interface{}{
		"user_id":  identity.UserID,
		"username": identity.Username,
	})
}

func (h *EventHandler) handleMessage(client *ws.Client, ev *ws.Event) error {
	if ev.RoomID == nil {
		return relay.ErrInvalidMessage
	}

	var payload dto.MessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return relay.ErrInvalidMessage
	}

	msg := relay.Message{
		Text:      payload.Text,
		Sender:    payload.Sender,
		Timestamp: payload.Timestamp,
	}

	ack, err := h.relay.Send(context.Background(), *ev.RoomID, client.ID(), msg)
	if err != nil {
		return err
	}
	if ack.Warning != "" {
		log.Printf("Send to room %s completed with warning: %s", ev.RoomID, ack.Warning)
	}

	// Отправитель получает сообщение через общую рассылку,
	// отдельное подтверждение не шлем
	return nil
}
