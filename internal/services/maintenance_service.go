package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"reservation-system/internal/dto"
	"reservation-system/internal/entities"
	"reservation-system/internal/lifecycle"
	"reservation-system/internal/locker"
	"reservation-system/internal/repositories"
	"reservation-system/pkg/config"
	"reservation-system/pkg/utils"
)

type MaintenanceServiceInterface interface {
	// Run выполняет обслуживание, если удалось стать единственным исполнителем.
	// Executed=false без ошибки означает, что задачу уже выполняет другой экземпляр.
	Run(ctx context.Context, correlationID string) (*dto.MaintenanceResultDTO, error)
}

type MaintenanceService struct {
	locker          locker.Locker
	txManager       repositories.TxManagerInterface
	equipmentRepo   repositories.EquipmentRepositoryInterface
	reservationRepo repositories.ReservationRepositoryInterface
	promoter        QueuePromoterInterface
	notifier        NotifierInterface
	directory       OversightDirectoryInterface
	catalog         CatalogSyncServiceInterface
	rules           *Rules
	cfg             config.MaintenanceConfig
	logger          *zap.Logger
}

func NewMaintenanceService(
	lk locker.Locker,
	txManager repositories.TxManagerInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	reservationRepo repositories.ReservationRepositoryInterface,
	promoter QueuePromoterInterface,
	notifier NotifierInterface,
	directory OversightDirectoryInterface,
	catalog CatalogSyncServiceInterface,
	rules *Rules,
	cfg config.MaintenanceConfig,
	logger *zap.Logger,
) MaintenanceServiceInterface {
	return &MaintenanceService{
		locker:          lk,
		txManager:       txManager,
		equipmentRepo:   equipmentRepo,
		reservationRepo: reservationRepo,
		promoter:        promoter,
		notifier:        notifier,
		directory:       directory,
		catalog:         catalog,
		rules:           rules,
		cfg:             cfg,
		logger:          logger,
	}
}

func (s *MaintenanceService) Run(ctx context.Context, correlationID string) (*dto.MaintenanceResultDTO, error) {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = utils.WithCorrelationID(ctx, correlationID)
	if s.cfg.DefaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DefaultTimeout)
		defer cancel()
	}
	logger := s.logger.With(zap.String("correlationID", correlationID))

	result := &dto.MaintenanceResultDTO{CorrelationID: correlationID, StartedAt: s.rules.Now()}

	acquired, err := s.locker.TryAcquire(ctx, s.cfg.LockKey)
	if err != nil {
		logger.Error("Не удалось запросить блокировку обслуживания", zap.Error(err))
		return nil, fmt.Errorf("блокировка обслуживания: %w", err)
	}
	if !acquired {
		logger.Info("Обслуживание уже выполняется другим экземпляром, пропускаем")
		return result, nil
	}
	defer func() {
		// Отпускаем блокировку даже после отмены контекста запуска.
		if err := s.locker.Release(context.WithoutCancel(ctx), s.cfg.LockKey); err != nil {
			logger.Error("Не удалось снять блокировку обслуживания", zap.Error(err))
		}
	}()

	result.Executed = true
	logger.Info("Обслуживание запущено")

	if err := s.warnSeparated(ctx, logger, result); err != nil {
		return nil, err
	}
	if err := s.expireReserved(ctx, logger, result); err != nil {
		return nil, err
	}
	if err := s.warnReserved(ctx, logger, result); err != nil {
		return nil, err
	}
	if s.cfg.CatalogSync && s.catalog != nil {
		created, updated, err := s.catalog.Reconcile(ctx)
		if err != nil {
			return nil, fmt.Errorf("сверка каталога: %w", err)
		}
		result.CatalogCreated, result.CatalogUpdated = created, updated
	}

	finished := s.rules.Now()
	result.FinishedAt = &finished
	logger.Info("Обслуживание завершено",
		zap.Int("separatedWarnings", result.SeparatedWarnings),
		zap.Int("expired", result.Expired),
		zap.Int("reservedWarnings", result.ReservedWarnings),
		zap.Int("failures", result.Failures),
		zap.Duration("took", finished.Sub(result.StartedAt)),
	)
	return result, nil
}

// warnSeparated - предупреждение за N рабочих дней до срока отделенной единицы.
// Повтор для той же заявки и получателя не отправляется никогда.
func (s *MaintenanceService) warnSeparated(ctx context.Context, logger *zap.Logger, result *dto.MaintenanceResultDTO) error {
	holdings, err := s.equipmentRepo.ListHoldings(ctx, lifecycle.StateSeparated, entities.ReservationApproved)
	if err != nil {
		return fmt.Errorf("поиск отделенных единиц: %w", err)
	}
	today := s.rules.Today()

	for _, h := range holdings {
		deadline := s.rules.Calendar.Civil(*h.Equipment.DeadlineDate)
		if !deadline.After(today) {
			continue
		}
		if !s.rules.Calendar.SubtractBusinessDays(deadline, s.rules.SeparatedWarningDays).Equal(today) {
			continue
		}
		resID := h.Reservation.ID
		req := NotifyRequest{
			Type:        entities.NotificationSeparatedWarning,
			Title:       "Приближается срок отделения",
			Message:     fmt.Sprintf("Срок отделения «%s» истекает %s", h.Equipment.Name, deadline.Format("02.01.2006")),
			ReferenceID: &resID,
			Metadata:    map[string]interface{}{"equipment_id": h.Equipment.ID, "deadline": deadline.Format(time.DateOnly)},
			ActionRef:   utils.ToPtr(fmt.Sprintf("/equipment/%d", h.Equipment.ID)),
		}
		sent, err := s.notifyUnseen(ctx, req, h.Reservation.RequesterID, repositories.NotificationSeenFilter{
			ReferenceID: resID,
			Type:        req.Type,
		})
		if err != nil {
			logger.Error("Ошибка предупреждения о сроке отделения", zap.Uint64("reservationID", resID), zap.Error(err))
			result.Failures++
			continue
		}
		if sent {
			result.SeparatedWarnings++
		}
	}
	return nil
}

// expireReserved снимает резерв с истекшим сроком. Каждая единица в своей транзакции.
func (s *MaintenanceService) expireReserved(ctx context.Context, logger *zap.Logger, result *dto.MaintenanceResultDTO) error {
	holdings, err := s.equipmentRepo.ListHoldings(ctx, lifecycle.StateReserved, entities.ReservationPending)
	if err != nil {
		return fmt.Errorf("поиск зарезервированных единиц: %w", err)
	}
	today := s.rules.Today()

	for _, h := range holdings {
		if !s.rules.Calendar.Civil(*h.Equipment.DeadlineDate).Before(today) {
			continue
		}
		expired, err := s.expireOne(ctx, h.Equipment.ID, h.Reservation.ID, today)
		if err != nil {
			logger.Error("Не удалось снять просроченный резерв",
				zap.Uint64("equipmentID", h.Equipment.ID),
				zap.Uint64("reservationID", h.Reservation.ID),
				zap.Error(err),
			)
			result.Failures++
			continue
		}
		if expired {
			result.Expired++
		}
	}
	return nil
}

func (s *MaintenanceService) expireOne(ctx context.Context, equipmentID, reservationID uint64, today time.Time) (bool, error) {
	var (
		outbox  []NotifyRequest
		expired bool
	)
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		outbox = nil
		expired = false

		eq, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, equipmentID)
		if err != nil {
			return err
		}
		// Состояние могло измениться после выборки.
		if eq.State != lifecycle.StateReserved || eq.DeadlineDate == nil ||
			!s.rules.Calendar.Civil(*eq.DeadlineDate).Before(today) {
			return nil
		}
		active, err := s.reservationRepo.ListActiveForUpdate(ctx, tx, eq.ID)
		if err != nil {
			return err
		}
		head := queueHead(active)
		if head == nil || head.ID != reservationID {
			return nil
		}

		now := s.rules.Now()
		head.TakeSnapshot(eq)
		head.Status = entities.ReservationRejected
		head.RejectedAt = &now
		head.RejectedBy = nil
		head.RejectionReason = utils.ToPtr(entities.ReasonDeadlineExpired)
		if err := s.reservationRepo.Update(ctx, tx, head); err != nil {
			return err
		}

		outcome, err := s.promoter.Promote(ctx, tx, eq, PromotionCause{
			Reason:              entities.ChangeReasonDeadlineExpired,
			ReleaseEvent:        lifecycle.EventExpire,
			ClosedReservationID: head.ID,
		})
		if err != nil {
			return err
		}

		resID := head.ID
		outbox = append(outbox, NotifyRequest{
			Recipients:  []uint64{head.RequesterID},
			ToOversight: true,
			Type:        entities.NotificationReservationExpired,
			Title:       "Резерв снят по сроку",
			Message:     fmt.Sprintf("Заявка #%d на «%s» отклонена: истек срок резерва", resID, eq.Name),
			ReferenceID: &resID,
			Metadata:    map[string]interface{}{"equipment_id": eq.ID, "reason": entities.ReasonDeadlineExpired},
		})
		if outcome.Promoted != nil {
			outbox = append(outbox, promotionNotifications(outcome)...)
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if expired {
		s.logger.Info("Резерв снят по сроку",
			zap.Uint64("equipmentID", equipmentID),
			zap.Uint64("reservationID", reservationID),
		)
	}
	dispatch(ctx, s.notifier, s.logger, outbox)
	return expired, nil
}

// warnReserved - предупреждение за N рабочих дней до срока чек-листа.
// Дедупликация по тексту сообщения в окне последних дней.
func (s *MaintenanceService) warnReserved(ctx context.Context, logger *zap.Logger, result *dto.MaintenanceResultDTO) error {
	holdings, err := s.equipmentRepo.ListHoldings(ctx, lifecycle.StateReserved, entities.ReservationPending)
	if err != nil {
		return fmt.Errorf("поиск зарезервированных единиц: %w", err)
	}
	today := s.rules.Today()
	since := today.AddDate(0, 0, -s.rules.ReservedWarningWindow)

	for _, h := range holdings {
		deadline := s.rules.Calendar.Civil(*h.Equipment.DeadlineDate)
		if !deadline.After(today) {
			continue
		}
		if !s.rules.Calendar.SubtractBusinessDays(deadline, s.rules.ReservedWarningDays).Equal(today) {
			continue
		}
		resID := h.Reservation.ID
		req := NotifyRequest{
			Type:  entities.NotificationReservedWarning,
			Title: "Приближается срок резерва",
			Message: fmt.Sprintf("Резерв «%s» по заявке #%d истекает %s, завершите чек-лист",
				h.Equipment.Name, resID, deadline.Format("02.01.2006")),
			ReferenceID: &resID,
			Metadata:    map[string]interface{}{"equipment_id": h.Equipment.ID, "deadline": deadline.Format(time.DateOnly)},
			ActionRef:   utils.ToPtr(fmt.Sprintf("/reservations/%d", resID)),
		}
		sent, err := s.notifyUnseen(ctx, req, h.Reservation.RequesterID, repositories.NotificationSeenFilter{
			ReferenceID: resID,
			Type:        req.Type,
			Message:     &req.Message,
			Since:       &since,
		})
		if err != nil {
			logger.Error("Ошибка предупреждения о сроке резерва", zap.Uint64("reservationID", resID), zap.Error(err))
			result.Failures++
			continue
		}
		if sent {
			result.ReservedWarnings++
		}
	}
	return nil
}

// notifyUnseen отправляет req автору заявки и контролю, пропуская получателей,
// которым подходящее уведомление уже отправлялось.
func (s *MaintenanceService) notifyUnseen(ctx context.Context, req NotifyRequest, requesterID uint64, seen repositories.NotificationSeenFilter) (bool, error) {
	oversight, err := s.directory.RecipientIDs(ctx)
	if err != nil {
		return false, err
	}
	var fresh []uint64
	for _, id := range uniqueIDs(append([]uint64{requesterID}, oversight...)) {
		f := seen
		f.RecipientID = id
		ok, err := s.notifier.Seen(ctx, f)
		if err != nil {
			return false, err
		}
		if !ok {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return false, nil
	}
	req.Recipients = fresh
	if err := s.notifier.Notify(ctx, req); err != nil {
		return false, err
	}
	return true, nil
}
