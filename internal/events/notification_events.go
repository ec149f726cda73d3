package events

import (
	"reservation-system/internal/entities"
)

const NotificationCreated = "notification.created"

// NotificationCreatedEvent - уведомление сохранено и должно быть доставлено онлайн-получателю.
type NotificationCreatedEvent struct {
	Notification entities.Notification
}

// Name - реализуем интерфейс eventbus.Event
func (e NotificationCreatedEvent) Name() string {
	return NotificationCreated
}
