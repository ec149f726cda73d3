package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hub хранит подключения пользователей и рассылает им сообщения.
type Hub struct {
	userClients map[uint64]map[*Client]struct{}
	Register    chan *Client
	unregister  chan *Client
	mu          sync.RWMutex
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		userClients: make(map[uint64]map[*Client]struct{}),
		Register:    make(chan *Client),
		unregister:  make(chan *Client),
		logger:      logger,
	}
}

// Run обслуживает регистрацию клиентов до отмены ctx.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.Register:
			h.mu.Lock()
			if h.userClients[client.UserID] == nil {
				h.userClients[client.UserID] = make(map[*Client]struct{})
			}
			h.userClients[client.UserID][client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("WebSocket: клиент зарегистрирован", zap.Uint64("userID", client.UserID))
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.userClients[client.UserID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.userClients, client.UserID)
	}
	h.logger.Debug("WebSocket: клиент отсоединен", zap.Uint64("userID", client.UserID))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.userClients {
		for c := range clients {
			close(c.Send)
		}
		delete(h.userClients, userID)
	}
}

// Connected - число активных соединений пользователя.
func (h *Hub) Connected(userID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID])
}

// SendMessageToUser отправляет сообщение во все соединения пользователя.
// Медленный клиент с переполненным буфером пропускает сообщение.
func (h *Hub) SendMessageToUser(userID uint64, payload interface{}, messageType string) error {
	messageBytes, err := json.Marshal(Envelope{
		Type:      messageType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.userClients[userID] {
		select {
		case client.Send <- messageBytes:
		default:
			h.logger.Warn("WebSocket: буфер клиента переполнен, сообщение пропущено", zap.Uint64("userID", userID))
		}
	}
	return nil
}
