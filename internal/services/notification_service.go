// Файл: internal/services/notification_service.go
package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"reservation-system/internal/dto"
	"reservation-system/internal/entities"
	"reservation-system/internal/events"
	"reservation-system/internal/repositories"
	"reservation-system/pkg/eventbus"
	"reservation-system/pkg/types"
	"reservation-system/pkg/utils"
)

// NotifyRequest - одно событие для набора получателей.
type NotifyRequest struct {
	Recipients  []uint64
	ToOversight bool
	Type        string
	Title       string
	Message     string
	ReferenceID *uint64
	Metadata    map[string]interface{}
	ActionRef   *string
}

// NotifierInterface - доставка уведомлений. Ошибки доставки никогда не откатывают изменение состояния.
type NotifierInterface interface {
	Notify(ctx context.Context, req NotifyRequest) error
	Seen(ctx context.Context, filter repositories.NotificationSeenFilter) (bool, error)
}

type NotificationServiceInterface interface {
	NotifierInterface
	ListOwn(ctx context.Context, filter types.Filter) ([]dto.NotificationDTO, uint64, error)
	MarkRead(ctx context.Context, id uint64) error
}

type NotificationService struct {
	repo      repositories.NotificationRepositoryInterface
	directory OversightDirectoryInterface
	bus       *eventbus.Bus
	logger    *zap.Logger
}

func NewNotificationService(
	repo repositories.NotificationRepositoryInterface,
	directory OversightDirectoryInterface,
	bus *eventbus.Bus,
	logger *zap.Logger,
) NotificationServiceInterface {
	return &NotificationService{repo: repo, directory: directory, bus: bus, logger: logger}
}

// Notify сохраняет по одной записи на получателя и публикует их для онлайн-доставки.
func (s *NotificationService) Notify(ctx context.Context, req NotifyRequest) error {
	recipients := req.Recipients
	if req.ToOversight {
		ids, err := s.directory.RecipientIDs(ctx)
		if err != nil {
			return fmt.Errorf("не удалось определить получателей: %w", err)
		}
		recipients = append(append([]uint64(nil), recipients...), ids...)
	}
	recipients = uniqueIDs(recipients)
	if len(recipients) == 0 {
		return nil
	}

	items := make([]*entities.Notification, 0, len(recipients))
	for _, id := range recipients {
		items = append(items, &entities.Notification{
			RecipientID: id,
			Type:        req.Type,
			Title:       req.Title,
			Message:     req.Message,
			ReferenceID: req.ReferenceID,
			Metadata:    req.Metadata,
			ActionRef:   req.ActionRef,
		})
	}
	if err := s.repo.CreateBatch(ctx, items); err != nil {
		return err
	}

	for _, n := range items {
		s.bus.Publish(ctx, events.NotificationCreatedEvent{Notification: *n})
	}
	s.logger.Debug("Уведомления созданы",
		zap.String("type", req.Type),
		zap.Int("recipients", len(items)),
		zap.String("correlationID", utils.GetCorrelationID(ctx)),
	)
	return nil
}

func (s *NotificationService) Seen(ctx context.Context, filter repositories.NotificationSeenFilter) (bool, error) {
	return s.repo.Exists(ctx, filter)
}

func (s *NotificationService) ListOwn(ctx context.Context, filter types.Filter) ([]dto.NotificationDTO, uint64, error) {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return nil, 0, err
	}
	list, total, err := s.repo.ListForRecipient(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.NotificationDTO, 0, len(list))
	for _, n := range list {
		out = append(out, notificationToDTO(n))
	}
	return out, total, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id uint64) error {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, id, userID)
}

func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// dispatch отправляет накопленные в транзакции уведомления после коммита.
func dispatch(ctx context.Context, notifier NotifierInterface, logger *zap.Logger, outbox []NotifyRequest) {
	for _, req := range outbox {
		if err := notifier.Notify(ctx, req); err != nil {
			logger.Error("Не удалось отправить уведомление",
				zap.String("type", req.Type),
				zap.Error(err),
			)
		}
	}
}
