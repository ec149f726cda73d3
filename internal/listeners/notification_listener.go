package listeners

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reservation-system/internal/events"
	"reservation-system/internal/services"
	"reservation-system/pkg/eventbus"
	"reservation-system/pkg/websocket"
)

// NotificationListener доставляет сохранённые уведомления подключенным клиентам.
// Офлайн-получатели увидят их в ленте.
type NotificationListener struct {
	wsNotificationService services.WebSocketNotificationServiceInterface
	logger                *zap.Logger
}

func NewNotificationListener(
	wsNotificationService services.WebSocketNotificationServiceInterface,
	logger *zap.Logger,
) *NotificationListener {
	return &NotificationListener{
		wsNotificationService: wsNotificationService,
		logger:                logger,
	}
}

func (l *NotificationListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.NotificationCreated, l.handleNotificationCreated)
	l.logger.Info("NotificationListener подписан на событие", zap.String("event", events.NotificationCreated))
}

func (l *NotificationListener) handleNotificationCreated(_ context.Context, event eventbus.Event) error {
	e, ok := event.(events.NotificationCreatedEvent)
	if !ok {
		return nil
	}
	n := e.Notification
	if !l.wsNotificationService.IsOnline(n.RecipientID) {
		return nil
	}

	payload := &websocket.NotificationPayload{
		EventID:     uuid.New().String(),
		ID:          n.ID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		ReferenceID: n.ReferenceID,
		ActionRef:   n.ActionRef,
		Metadata:    n.Metadata,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
	if err := l.wsNotificationService.SendNotification(n.RecipientID, payload, websocket.MessageTypeNotification); err != nil {
		l.logger.Error("Не удалось отправить WebSocket-уведомление",
			zap.Uint64("userID", n.RecipientID),
			zap.String("type", n.Type),
			zap.Error(err),
		)
		return err
	}
	return nil
}
