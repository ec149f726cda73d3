package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"reservation-system/internal/entities"
	"reservation-system/internal/lifecycle"
	"reservation-system/internal/repositories"
	"reservation-system/pkg/utils"
)

// PromotionCause - кто и почему освободил единицу.
type PromotionCause struct {
	ActorID *uint64 // nil - система
	Reason  string
	// ReleaseEvent применяется, если очередь пуста. По умолчанию RELEASE.
	ReleaseEvent lifecycle.Event
	// ClosedReservationID - заявка, которая удерживала единицу до закрытия.
	ClosedReservationID uint64
}

// PromotionOutcome - результат продвижения очереди.
type PromotionOutcome struct {
	EquipmentID         uint64
	EquipmentName       string
	ClosedReservationID uint64
	Released            bool
	Promoted            *entities.Reservation
}

type QueuePromoterInterface interface {
	// Promote вызывается внутри транзакции вызывающего после закрытия удерживающей заявки.
	// Строка оборудования должна быть уже заблокирована.
	Promote(ctx context.Context, tx pgx.Tx, eq *entities.Equipment, cause PromotionCause) (*PromotionOutcome, error)
}

type QueuePromoter struct {
	equipmentRepo   repositories.EquipmentRepositoryInterface
	reservationRepo repositories.ReservationRepositoryInterface
	userRepo        repositories.UserRepositoryInterface
	changeLogRepo   repositories.ChangeLogRepositoryInterface
	rules           *Rules
	logger          *zap.Logger
}

func NewQueuePromoter(
	equipmentRepo repositories.EquipmentRepositoryInterface,
	reservationRepo repositories.ReservationRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	changeLogRepo repositories.ChangeLogRepositoryInterface,
	rules *Rules,
	logger *zap.Logger,
) QueuePromoterInterface {
	return &QueuePromoter{
		equipmentRepo:   equipmentRepo,
		reservationRepo: reservationRepo,
		userRepo:        userRepo,
		changeLogRepo:   changeLogRepo,
		rules:           rules,
		logger:          logger,
	}
}

func (p *QueuePromoter) Promote(ctx context.Context, tx pgx.Tx, eq *entities.Equipment, cause PromotionCause) (*PromotionOutcome, error) {
	active, err := p.reservationRepo.ListActiveForUpdate(ctx, tx, eq.ID)
	if err != nil {
		return nil, err
	}
	outcome := &PromotionOutcome{
		EquipmentID:         eq.ID,
		EquipmentName:       eq.Name,
		ClosedReservationID: cause.ClosedReservationID,
	}

	head := queueHead(active)
	if head == nil {
		event := cause.ReleaseEvent
		if event == "" {
			event = lifecycle.EventRelease
		}
		next, err := lifecycle.Next(eq.State, event)
		if err != nil {
			return nil, err
		}
		log := newChangeLog(eq.ID, cause.ActorID, cause.Reason)
		clearReservationFields(eq, log)
		eq.State = next

		if err := p.equipmentRepo.Update(ctx, tx, eq); err != nil {
			return nil, err
		}
		if err := p.changeLogRepo.Append(ctx, tx, log.entries...); err != nil {
			return nil, err
		}
		p.logger.Info("Единица освобождена", zap.Uint64("equipmentID", eq.ID), zap.String("reason", cause.Reason))
		outcome.Released = true
		return outcome, nil
	}

	next, err := lifecycle.Next(eq.State, lifecycle.EventPromote)
	if err != nil {
		return nil, err
	}
	requester, err := p.userRepo.FindByID(ctx, tx, head.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("не найден автор заявки #%d: %w", head.ID, err)
	}

	deadline := p.rules.ReserveDeadline()
	log := newChangeLog(eq.ID, cause.ActorID, entities.ChangeReasonPromoted)
	log.str(entities.FieldClient, eq.Client, nil)
	log.str(entities.FieldAdvisor, eq.Advisor, &requester.Fio)
	log.date(entities.FieldDeadlineDate, eq.DeadlineDate, &deadline)

	eq.State = next
	eq.Client = nil
	eq.Advisor = utils.ToPtr(requester.Fio)
	eq.DeadlineDate = &deadline
	eq.DeadlineModified = false

	head.TakeSnapshot(eq)
	if err := p.equipmentRepo.Update(ctx, tx, eq); err != nil {
		return nil, err
	}
	if err := p.reservationRepo.Update(ctx, tx, head); err != nil {
		return nil, err
	}
	if err := p.changeLogRepo.Append(ctx, tx, log.entries...); err != nil {
		return nil, err
	}
	p.logger.Info("Очередь продвинута",
		zap.Uint64("equipmentID", eq.ID),
		zap.Uint64("reservationID", head.ID),
	)
	outcome.Promoted = head
	return outcome, nil
}

// clearReservationFields очищает клиента, консультанта и срок с записью в журнал.
func clearReservationFields(eq *entities.Equipment, log *changeLog) {
	log.str(entities.FieldClient, eq.Client, nil)
	log.str(entities.FieldAdvisor, eq.Advisor, nil)
	log.date(entities.FieldDeadlineDate, eq.DeadlineDate, nil)

	eq.Client = nil
	eq.Advisor = nil
	eq.DeadlineDate = nil
	eq.DeadlineModified = false
}

// promotionNotifications - уведомления по итогам продвижения очереди.
func promotionNotifications(o *PromotionOutcome) []NotifyRequest {
	if o == nil {
		return nil
	}
	if o.Released {
		var ref *uint64
		if o.ClosedReservationID != 0 {
			ref = utils.ToPtr(o.ClosedReservationID)
		}
		return []NotifyRequest{{
			ToOversight: true,
			Type:        entities.NotificationEquipmentReleased,
			Title:       "Оборудование освобождено",
			Message:     fmt.Sprintf("Единица «%s» снова свободна", o.EquipmentName),
			ReferenceID: ref,
			Metadata:    map[string]interface{}{"equipment_id": o.EquipmentID},
		}}
	}
	resID := o.Promoted.ID
	return []NotifyRequest{{
		Recipients:  []uint64{o.Promoted.RequesterID},
		ToOversight: true,
		Type:        entities.NotificationFirstInLine,
		Title:       "Заявка первая в очереди",
		Message:     fmt.Sprintf("Заявка #%d первая в очереди на «%s», заполните чек-лист", resID, o.EquipmentName),
		ReferenceID: &resID,
		Metadata:    map[string]interface{}{"equipment_id": o.EquipmentID},
		ActionRef:   utils.ToPtr(fmt.Sprintf("/reservations/%d", resID)),
	}}
}
