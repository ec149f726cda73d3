package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"reservation-system/internal/authz"
	"reservation-system/internal/dto"
	"reservation-system/internal/entities"
	"reservation-system/internal/lifecycle"
	"reservation-system/internal/repositories"
	apperrors "reservation-system/pkg/errors"
	"reservation-system/pkg/utils"
)

type ReservationServiceInterface interface {
	RequestReservation(ctx context.Context, equipmentID uint64, d dto.CreateReservationDTO) (*dto.ReservationResultDTO, error)
	UpdateChecklist(ctx context.Context, reservationID uint64, d dto.UpdateChecklistDTO) (*dto.ReservationResultDTO, error)
	Approve(ctx context.Context, reservationID uint64) (*dto.ReservationResultDTO, error)
	Reject(ctx context.Context, reservationID uint64, d dto.RejectReservationDTO) (*dto.ReservationResultDTO, error)
}

type ReservationService struct {
	txManager       repositories.TxManagerInterface
	equipmentRepo   repositories.EquipmentRepositoryInterface
	reservationRepo repositories.ReservationRepositoryInterface
	userRepo        repositories.UserRepositoryInterface
	changeLogRepo   repositories.ChangeLogRepositoryInterface
	promoter        QueuePromoterInterface
	notifier        NotifierInterface
	rules           *Rules
	logger          *zap.Logger
}

func NewReservationService(
	txManager repositories.TxManagerInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	reservationRepo repositories.ReservationRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	changeLogRepo repositories.ChangeLogRepositoryInterface,
	promoter QueuePromoterInterface,
	notifier NotifierInterface,
	rules *Rules,
	logger *zap.Logger,
) ReservationServiceInterface {
	return &ReservationService{
		txManager:       txManager,
		equipmentRepo:   equipmentRepo,
		reservationRepo: reservationRepo,
		userRepo:        userRepo,
		changeLogRepo:   changeLogRepo,
		promoter:        promoter,
		notifier:        notifier,
		rules:           rules,
		logger:          logger,
	}
}

// lockReservation блокирует единицу, затем её активные заявки (всегда в этом порядке).
func (s *ReservationService) lockReservation(ctx context.Context, tx pgx.Tx, reservationID uint64) (*entities.Reservation, *entities.Equipment, []*entities.Reservation, error) {
	probe, err := s.reservationRepo.FindByID(ctx, tx, reservationID)
	if err != nil {
		return nil, nil, nil, err
	}
	eq, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, probe.EquipmentID)
	if err != nil {
		return nil, nil, nil, err
	}
	active, err := s.reservationRepo.ListActiveForUpdate(ctx, tx, eq.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, r := range active {
		if r.ID == reservationID {
			return r, eq, active, nil
		}
	}
	return nil, nil, nil, apperrors.NewGuardError(RuleReservationClosed,
		"заявка #%d уже закрыта (статус %s)", reservationID, probe.Status).
		WithDetails("status", string(probe.Status))
}

func (s *ReservationService) RequestReservation(ctx context.Context, equipmentID uint64, d dto.CreateReservationDTO) (*dto.ReservationResultDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if !s.rules.Policy.CanDo(authz.ReservationsCreate, authz.Context{ActorID: actor.ID, Role: actor.Role}) {
		return nil, apperrors.ErrForbidden
	}

	var (
		outbox []NotifyRequest
		result *dto.ReservationResultDTO
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		outbox = nil

		eq, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, equipmentID)
		if err != nil {
			return err
		}
		active, err := s.reservationRepo.ListActiveForUpdate(ctx, tx, eq.ID)
		if err != nil {
			return err
		}
		for _, r := range active {
			if r.RequesterID == actor.ID {
				return apperrors.NewGuardError(RuleDuplicateRequest,
					"у вас уже есть активная заявка #%d на эту единицу", r.ID).
					WithDetails("reservation_id", r.ID)
			}
			if r.Status == entities.ReservationApproved {
				return apperrors.NewGuardError(RuleAlreadyApproved,
					"на единицу уже одобрена заявка #%d", r.ID)
			}
		}

		requester, err := s.userRepo.FindByID(ctx, tx, actor.ID)
		if err != nil {
			return err
		}

		res := &entities.Reservation{
			EquipmentID: eq.ID,
			RequesterID: actor.ID,
			Status:      entities.ReservationPending,
		}
		position := 1
		for _, r := range active {
			if r.Status == entities.ReservationPending {
				position++
			}
		}

		if eq.State == lifecycle.StateFree {
			next, err := lifecycle.Next(eq.State, lifecycle.EventRequest)
			if err != nil {
				return err
			}
			if !d.Client.Valid || strings.TrimSpace(d.Client.String) == "" {
				return apperrors.NewInvalidInputError("для свободной единицы необходимо указать клиента")
			}
			client := strings.TrimSpace(d.Client.String)

			log := newChangeLog(eq.ID, &actor.ID, entities.ChangeReasonRequested)
			log.str(entities.FieldClient, eq.Client, &client)
			log.str(entities.FieldAdvisor, eq.Advisor, &requester.Fio)
			log.date(entities.FieldDeadlineDate, eq.DeadlineDate, nil)

			eq.State = next
			eq.Client = &client
			eq.Advisor = utils.ToPtr(requester.Fio)
			eq.DeadlineDate = nil
			eq.DeadlineModified = false

			if err := s.equipmentRepo.Update(ctx, tx, eq); err != nil {
				return err
			}
			if err := s.changeLogRepo.Append(ctx, tx, log.entries...); err != nil {
				return err
			}
		} else if _, err := lifecycle.Next(eq.State, lifecycle.EventEnqueue); err != nil {
			return err
		}

		res.TakeSnapshot(eq)
		if _, err := s.reservationRepo.Create(ctx, tx, res); err != nil {
			return err
		}

		ref := res.ID
		req := NotifyRequest{
			ToOversight: true,
			ReferenceID: &ref,
			Metadata:    map[string]interface{}{"equipment_id": eq.ID, "queue_position": position},
			ActionRef:   utils.ToPtr(fmt.Sprintf("/reservations/%d", res.ID)),
		}
		if position == 1 {
			req.Type = entities.NotificationReservationRequested
			req.Title = "Новая заявка на резерв"
			req.Message = fmt.Sprintf("%s запросил(а) резерв «%s»", requester.Fio, eq.Name)
		} else {
			req.Type = entities.NotificationReservationQueued
			req.Title = "Заявка поставлена в очередь"
			req.Message = fmt.Sprintf("%s встал(а) в очередь на «%s», позиция %d", requester.Fio, eq.Name, position)
		}
		outbox = append(outbox, req)

		result = resultDTO(res, eq, position)
		return nil
	})
	if err != nil {
		s.logger.Warn("Заявка на резерв отклонена",
			zap.Uint64("equipmentID", equipmentID),
			zap.Uint64("actorID", actor.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Создана заявка на резерв",
		zap.Uint64("equipmentID", equipmentID),
		zap.Uint64("reservationID", result.Reservation.ID),
		zap.Int("queuePosition", result.Reservation.QueuePosition),
	)
	dispatch(ctx, s.notifier, s.logger, outbox)
	return result, nil
}

func (s *ReservationService) UpdateChecklist(ctx context.Context, reservationID uint64, d dto.UpdateChecklistDTO) (*dto.ReservationResultDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	var (
		outbox []NotifyRequest
		result *dto.ReservationResultDTO
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		outbox = nil

		res, eq, active, err := s.lockReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if !s.rules.Policy.CanDo(authz.ReservationsChecklist, authz.Context{ActorID: actor.ID, Role: actor.Role, Target: res}) {
			return apperrors.ErrForbidden
		}
		if res.Status != entities.ReservationPending {
			return apperrors.NewGuardError(RuleNotPending, "чек-лист можно менять только у ожидающей заявки")
		}
		if head := queueHead(active); head == nil || head.ID != res.ID {
			return apperrors.NewGuardError(RuleNotQueueHead,
				"заявка #%d не первая в очереди", res.ID).
				WithDetails("queue_position", queuePosition(active, res.ID))
		}
		if eq.State != lifecycle.StatePreReserved && eq.State != lifecycle.StateReserved {
			return apperrors.NewGuardError(RuleChecklistState,
				"чек-лист недоступен для оборудования в состоянии «%s»", eq.State.Title()).
				WithDetails("state", string(eq.State))
		}

		if d.DepositConfirmed.Valid {
			res.DepositConfirmed = d.DepositConfirmed.Bool
		}
		if d.TenPercentPaid.Valid {
			res.TenPercentPaid = d.TenPercentPaid.Bool
		}
		if d.DocumentsSigned.Valid {
			res.DocumentsSigned = d.DocumentsSigned.Bool
		}
		if res.FirstChecklistDate == nil && res.CheckedCount() > 0 {
			now := s.rules.Now()
			res.FirstChecklistDate = &now
		}

		eqChanged := false
		log := newChangeLog(eq.ID, &actor.ID, entities.ChangeReasonChecklist)
		if d.Client.Valid && eq.Client == nil {
			client := strings.TrimSpace(d.Client.String)
			log.str(entities.FieldClient, eq.Client, &client)
			eq.Client = &client
			eqChanged = true
		}

		if eq.State == lifecycle.StatePreReserved && res.CheckedCount() > 0 {
			next, err := lifecycle.Next(eq.State, lifecycle.EventStartChecklist)
			if err != nil {
				return err
			}
			deadline := s.rules.ReserveDeadline()
			log.date(entities.FieldDeadlineDate, eq.DeadlineDate, &deadline)

			eq.State = next
			eq.DeadlineDate = &deadline
			eq.DeadlineModified = false
			res.TakeSnapshot(eq)
			eqChanged = true

			ref := res.ID
			outbox = append(outbox, NotifyRequest{
				Recipients:  []uint64{res.RequesterID},
				ToOversight: true,
				Type:        entities.NotificationChecklistStarted,
				Title:       "Единица зарезервирована",
				Message: fmt.Sprintf("«%s» зарезервирована до %s, заявка #%d",
					eq.Name, deadline.Format("02.01.2006"), res.ID),
				ReferenceID: &ref,
				Metadata:    map[string]interface{}{"equipment_id": eq.ID, "deadline_date": deadline.Format("2006-01-02")},
			})
		}

		if eqChanged {
			if err := s.equipmentRepo.Update(ctx, tx, eq); err != nil {
				return err
			}
			if err := s.changeLogRepo.Append(ctx, tx, log.entries...); err != nil {
				return err
			}
		}
		if err := s.reservationRepo.Update(ctx, tx, res); err != nil {
			return err
		}

		result = resultDTO(res, eq, 1)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Чек-лист обновлён",
		zap.Uint64("reservationID", reservationID),
		zap.String("state", result.Equipment.State),
	)
	dispatch(ctx, s.notifier, s.logger, outbox)
	return result, nil
}

func (s *ReservationService) Approve(ctx context.Context, reservationID uint64) (*dto.ReservationResultDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if !s.rules.Policy.CanDo(authz.ReservationsApprove, authz.Context{ActorID: actor.ID, Role: actor.Role}) {
		return nil, apperrors.ErrForbidden
	}

	var (
		outbox []NotifyRequest
		result *dto.ReservationResultDTO
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		outbox = nil

		res, eq, active, err := s.lockReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != entities.ReservationPending {
			return apperrors.NewGuardError(RuleNotPending, "заявка #%d уже одобрена", res.ID)
		}
		if head := queueHead(active); head == nil || head.ID != res.ID {
			return apperrors.NewGuardError(RuleNotQueueHead,
				"одобрить можно только первую заявку в очереди").
				WithDetails("queue_position", queuePosition(active, res.ID))
		}
		next, err := lifecycle.Next(eq.State, lifecycle.EventApprove)
		if err != nil {
			return err
		}
		if missing := res.MissingItems(); len(missing) > 0 || res.FirstChecklistDate == nil {
			return apperrors.NewGuardError(RuleChecklistIncomplete,
				"чек-лист не заполнен: %s", apperrors.JoinMissing(missing)).
				WithDetails("missing", missing)
		}
		days := s.rules.Calendar.CalendarDaysBetween(*res.FirstChecklistDate, s.rules.Now())
		if days > s.rules.ApprovalWindowDays {
			return apperrors.NewGuardError(RuleApprovalWindowExpired,
				"с первой отметки чек-листа прошло %d дн., допустимо не более %d", days, s.rules.ApprovalWindowDays).
				WithDetails("days", days).
				WithDetails("limit", s.rules.ApprovalWindowDays)
		}

		now := s.rules.Now()
		deadline := s.rules.SeparationDeadline()

		// Сначала закрываем конкурентов: одобренной может быть только одна заявка.
		var losers []*entities.Reservation
		for _, r := range active {
			if r.ID == res.ID || r.Status != entities.ReservationPending {
				continue
			}
			r.Status = entities.ReservationRejected
			r.RejectedAt = &now
			r.RejectedBy = utils.ToPtr(actor.ID)
			r.RejectionReason = utils.ToPtr(entities.ReasonAnotherApproved)
			if err := s.reservationRepo.Update(ctx, tx, r); err != nil {
				return err
			}
			losers = append(losers, r)
		}

		log := newChangeLog(eq.ID, &actor.ID, entities.ChangeReasonApproved)
		log.date(entities.FieldDeadlineDate, eq.DeadlineDate, &deadline)
		if eq.Advisor == nil {
			requester, err := s.userRepo.FindByID(ctx, tx, res.RequesterID)
			if err != nil {
				return err
			}
			log.str(entities.FieldAdvisor, nil, &requester.Fio)
			eq.Advisor = utils.ToPtr(requester.Fio)
		}
		eq.State = next
		eq.DeadlineDate = &deadline
		eq.DeadlineModified = false

		res.Status = entities.ReservationApproved
		res.ApprovedAt = &now
		res.ApprovedBy = utils.ToPtr(actor.ID)
		res.TakeSnapshot(eq)

		if err := s.equipmentRepo.Update(ctx, tx, eq); err != nil {
			return err
		}
		if err := s.reservationRepo.Update(ctx, tx, res); err != nil {
			return err
		}
		if err := s.changeLogRepo.Append(ctx, tx, log.entries...); err != nil {
			return err
		}

		ref := res.ID
		outbox = append(outbox, NotifyRequest{
			Recipients:  []uint64{res.RequesterID},
			ToOversight: true,
			Type:        entities.NotificationReservationApproved,
			Title:       "Заявка одобрена",
			Message: fmt.Sprintf("Заявка #%d на «%s» одобрена, единица отделена до %s",
				res.ID, eq.Name, deadline.Format("02.01.2006")),
			ReferenceID: &ref,
			Metadata:    map[string]interface{}{"equipment_id": eq.ID, "approved_by": actor.ID},
		})
		for _, l := range losers {
			lref := l.ID
			outbox = append(outbox, NotifyRequest{
				Recipients:  []uint64{l.RequesterID},
				Type:        entities.NotificationReservationRejected,
				Title:       "Заявка отклонена",
				Message:     fmt.Sprintf("Заявка #%d на «%s» отклонена: одобрена другая заявка", l.ID, eq.Name),
				ReferenceID: &lref,
				Metadata:    map[string]interface{}{"equipment_id": eq.ID, "reason": entities.ReasonAnotherApproved},
			})
		}

		result = resultDTO(res, eq, 0)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Заявка одобрена",
		zap.Uint64("reservationID", reservationID),
		zap.Uint64("approverID", actor.ID),
	)
	dispatch(ctx, s.notifier, s.logger, outbox)
	return result, nil
}

func (s *ReservationService) Reject(ctx context.Context, reservationID uint64, d dto.RejectReservationDTO) (*dto.ReservationResultDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(d.Reason)
	if reason == "" {
		return nil, apperrors.NewInvalidInputError("необходимо указать причину отклонения")
	}

	var (
		outbox []NotifyRequest
		result *dto.ReservationResultDTO
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		outbox = nil

		res, eq, active, err := s.lockReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if !s.rules.Policy.CanDo(authz.ReservationsReject, authz.Context{ActorID: actor.ID, Role: actor.Role, Target: res}) {
			return apperrors.ErrForbidden
		}
		if eq.State == lifecycle.StateDelivered {
			return apperrors.NewGuardError(RuleEquipmentDelivered,
				"оборудование «%s» уже выдано, заявку нельзя отклонить", eq.Name)
		}

		holder := holderOf(active)
		held := holder != nil && holder.ID == res.ID

		now := s.rules.Now()
		res.TakeSnapshot(eq)
		res.Status = entities.ReservationRejected
		res.RejectedAt = &now
		res.RejectedBy = utils.ToPtr(actor.ID)
		res.RejectionReason = &reason
		if err := s.reservationRepo.Update(ctx, tx, res); err != nil {
			return err
		}

		var outcome *PromotionOutcome
		if held {
			outcome, err = s.promoter.Promote(ctx, tx, eq, PromotionCause{
				ActorID:             utils.ToPtr(actor.ID),
				Reason:              entities.ChangeReasonRejected,
				ClosedReservationID: res.ID,
			})
			if err != nil {
				return err
			}
		}

		ref := res.ID
		outbox = append(outbox, NotifyRequest{
			Recipients:  []uint64{res.RequesterID},
			ToOversight: true,
			Type:        entities.NotificationReservationRejected,
			Title:       "Заявка отклонена",
			Message:     fmt.Sprintf("Заявка #%d на «%s» отклонена: %s", res.ID, eq.Name, reason),
			ReferenceID: &ref,
			Metadata:    map[string]interface{}{"equipment_id": eq.ID, "rejected_by": actor.ID},
		})
		outbox = append(outbox, promotionNotifications(outcome)...)

		result = resultDTO(res, eq, 0)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Заявка отклонена",
		zap.Uint64("reservationID", reservationID),
		zap.Uint64("actorID", actor.ID),
		zap.String("state", result.Equipment.State),
	)
	dispatch(ctx, s.notifier, s.logger, outbox)
	return result, nil
}
