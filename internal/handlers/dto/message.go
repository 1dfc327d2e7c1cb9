package dto

import "time"

// MessagePayload — тело события message от клиента
type MessagePayload struct {
	Text      string    `json:"text"`
	Sender    string    `json:"sender,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// LastMessageRequest — тело PUT /api/rooms/:id/last-message
type LastMessageRequest struct {
	Text      string    `json:"text" binding:"required"`
	Sender    string    `json:"sender" binding:"required"`
	Timestamp time.Time `json:"timestamp"`
}
