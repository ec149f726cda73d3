package services

import (
	"go.uber.org/zap"

	"reservation-system/pkg/websocket"
)

// Интерфейс, чтобы можно было легко подменять в тестах
type WebSocketNotificationServiceInterface interface {
	SendNotification(userID uint64, payload interface{}, messageType string) error
	IsOnline(userID uint64) bool
}

type WebSocketNotificationService struct {
	hub    *websocket.Hub
	logger *zap.Logger
}

func NewWebSocketNotificationService(hub *websocket.Hub, logger *zap.Logger) WebSocketNotificationServiceInterface {
	return &WebSocketNotificationService{
		hub:    hub,
		logger: logger,
	}
}

func (s *WebSocketNotificationService) SendNotification(userID uint64, payload interface{}, messageType string) error {
	s.logger.Debug("Отправка WebSocket-уведомления",
		zap.Uint64("userID", userID),
		zap.String("type", messageType),
	)
	return s.hub.SendMessageToUser(userID, payload, messageType)
}

func (s *WebSocketNotificationService) IsOnline(userID uint64) bool {
	return s.hub.Connected(userID) > 0
}
