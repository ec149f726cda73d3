package websocket

import "time"

// Envelope - "конверт", в котором отправляются все сообщения.
// Type позволяет фронтенду понять, что делать с Payload.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

const MessageTypeNotification = "notification"

// NotificationPayload - уведомление для "колокольчика".
type NotificationPayload struct {
	EventID     string                 `json:"eventId"`
	ID          uint64                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	ReferenceID *uint64                `json:"referenceId,omitempty"`
	ActionRef   *string                `json:"actionRef,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	IsRead      bool                   `json:"isRead"`
	CreatedAt   time.Time              `json:"created_at"`
}
