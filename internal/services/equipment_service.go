package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"reservation-system/internal/authz"
	"reservation-system/internal/dto"
	"reservation-system/internal/entities"
	"reservation-system/internal/lifecycle"
	"reservation-system/internal/repositories"
	apperrors "reservation-system/pkg/errors"
	"reservation-system/pkg/types"
	"reservation-system/pkg/utils"
)

// FieldUpdate - правка одного поля резервирования. Набор вариантов закрыт.
type FieldUpdate interface {
	validate(r *Rules) error
	// apply меняет поле и пишет изменение в журнал; возвращает true, если значение изменилось.
	apply(eq *entities.Equipment, log *changeLog) bool
}

type ClientUpdate struct{ Value *string }

type AdvisorUpdate struct{ Value *string }

type DeadlineUpdate struct{ Value *time.Time }

func (u ClientUpdate) validate(*Rules) error {
	if u.Value != nil && len(*u.Value) > 255 {
		return apperrors.NewInvalidInputError("имя клиента слишком длинное")
	}
	return nil
}

func (u ClientUpdate) apply(eq *entities.Equipment, log *changeLog) bool {
	if !utils.DiffPtr(eq.Client, u.Value) {
		return false
	}
	log.str(entities.FieldClient, eq.Client, u.Value)
	eq.Client = u.Value
	return true
}

func (u AdvisorUpdate) validate(*Rules) error {
	if u.Value != nil && len(*u.Value) > 255 {
		return apperrors.NewInvalidInputError("имя консультанта слишком длинное")
	}
	return nil
}

func (u AdvisorUpdate) apply(eq *entities.Equipment, log *changeLog) bool {
	if !utils.DiffPtr(eq.Advisor, u.Value) {
		return false
	}
	log.str(entities.FieldAdvisor, eq.Advisor, u.Value)
	eq.Advisor = u.Value
	return true
}

func (u DeadlineUpdate) validate(r *Rules) error {
	if u.Value != nil && u.Value.Before(r.Today()) {
		return apperrors.NewInvalidInputError("срок не может быть в прошлом")
	}
	return nil
}

func (u DeadlineUpdate) apply(eq *entities.Equipment, log *changeLog) bool {
	if !utils.DiffDate(eq.DeadlineDate, u.Value) {
		return false
	}
	log.date(entities.FieldDeadlineDate, eq.DeadlineDate, u.Value)
	eq.DeadlineDate = u.Value
	if lifecycle.DeadlineAudited(eq.State) {
		eq.DeadlineModified = true
	}
	return true
}

// fieldUpdatesFromDTO: пустая строка очищает поле.
func fieldUpdatesFromDTO(d dto.UpdateEquipmentFieldsDTO, r *Rules) ([]FieldUpdate, error) {
	var updates []FieldUpdate
	optional := func(v string) *string {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil
		}
		return &v
	}
	if d.Client.Valid {
		updates = append(updates, ClientUpdate{Value: optional(d.Client.String)})
	}
	if d.Advisor.Valid {
		updates = append(updates, AdvisorUpdate{Value: optional(d.Advisor.String)})
	}
	if d.DeadlineDate.Valid {
		var value *time.Time
		if raw := strings.TrimSpace(d.DeadlineDate.String); raw != "" {
			t, err := time.ParseInLocation(time.DateOnly, raw, r.Calendar.Location())
			if err != nil {
				return nil, apperrors.NewInvalidInputError("неверный формат даты %q, ожидается YYYY-MM-DD", raw)
			}
			value = &t
		}
		updates = append(updates, DeadlineUpdate{Value: value})
	}
	for _, u := range updates {
		if err := u.validate(r); err != nil {
			return nil, err
		}
	}
	return updates, nil
}

type EquipmentServiceInterface interface {
	GetEquipment(ctx context.Context, id uint64) (*dto.EquipmentResponseDTO, error)
	ListEquipment(ctx context.Context, filter types.Filter) ([]dto.EquipmentResponseDTO, uint64, error)
	ListReservations(ctx context.Context, equipmentID uint64) ([]dto.ReservationResponseDTO, error)
	GetChangeLog(ctx context.Context, equipmentID uint64) ([]dto.ChangeLogDTO, error)

	UpdateEquipmentFields(ctx context.Context, equipmentID uint64, d dto.UpdateEquipmentFieldsDTO) (*dto.EquipmentResponseDTO, error)
	MarkDelivered(ctx context.Context, equipmentID uint64) (*dto.EquipmentResponseDTO, error)
	RevertDelivered(ctx context.Context, equipmentID uint64, d dto.RevertDeliveredDTO) (*dto.EquipmentResponseDTO, error)
}

type EquipmentService struct {
	txManager       repositories.TxManagerInterface
	equipmentRepo   repositories.EquipmentRepositoryInterface
	reservationRepo repositories.ReservationRepositoryInterface
	changeLogRepo   repositories.ChangeLogRepositoryInterface
	notifier        NotifierInterface
	rules           *Rules
	logger          *zap.Logger
}

func NewEquipmentService(
	txManager repositories.TxManagerInterface,
	equipmentRepo repositories.EquipmentRepositoryInterface,
	reservationRepo repositories.ReservationRepositoryInterface,
	changeLogRepo repositories.ChangeLogRepositoryInterface,
	notifier NotifierInterface,
	rules *Rules,
	logger *zap.Logger,
) EquipmentServiceInterface {
	return &EquipmentService{
		txManager:       txManager,
		equipmentRepo:   equipmentRepo,
		reservationRepo: reservationRepo,
		changeLogRepo:   changeLogRepo,
		notifier:        notifier,
		rules:           rules,
		logger:          logger,
	}
}

func (s *EquipmentService) GetEquipment(ctx context.Context, id uint64) (*dto.EquipmentResponseDTO, error) {
	eq, err := s.equipmentRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	out := equipmentToDTO(eq)
	return &out, nil
}

func (s *EquipmentService) ListEquipment(ctx context.Context, filter types.Filter) ([]dto.EquipmentResponseDTO, uint64, error) {
	if raw, ok := filter.Filter["state"].(string); ok && !strings.Contains(raw, ",") {
		if _, err := lifecycle.ParseState(raw); err != nil {
			return nil, 0, err
		}
	}
	list, total, err := s.equipmentRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Ошибка получения списка оборудования", zap.Error(err))
		return nil, 0, err
	}
	out := make([]dto.EquipmentResponseDTO, 0, len(list))
	for _, e := range list {
		out = append(out, equipmentToDTO(e))
	}
	return out, total, nil
}

func (s *EquipmentService) ListReservations(ctx context.Context, equipmentID uint64) ([]dto.ReservationResponseDTO, error) {
	if _, err := s.equipmentRepo.FindByID(ctx, nil, equipmentID); err != nil {
		return nil, err
	}
	list, err := s.reservationRepo.ListByEquipment(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ReservationResponseDTO, 0, len(list))
	for _, r := range list {
		out = append(out, reservationToDTO(r, queuePosition(list, r.ID)))
	}
	return out, nil
}

func (s *EquipmentService) GetChangeLog(ctx context.Context, equipmentID uint64) ([]dto.ChangeLogDTO, error) {
	if _, err := s.equipmentRepo.FindByID(ctx, nil, equipmentID); err != nil {
		return nil, err
	}
	entries, err := s.changeLogRepo.ListByEquipment(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ChangeLogDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, changeLogToDTO(e))
	}
	return out, nil
}

func (s *EquipmentService) UpdateEquipmentFields(ctx context.Context, equipmentID uint64, d dto.UpdateEquipmentFieldsDTO) (*dto.EquipmentResponseDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	updates, err := fieldUpdatesFromDTO(d, s.rules)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, apperrors.NewInvalidInputError("не передано ни одного поля для изменения")
	}

	var result dto.EquipmentResponseDTO
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		eq, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, equipmentID)
		if err != nil {
			return err
		}
		active, err := s.reservationRepo.ListActiveForUpdate(ctx, tx, eq.ID)
		if err != nil {
			return err
		}
		if !s.rules.Policy.CanDo(authz.EquipmentUpdate, authz.Context{ActorID: actor.ID, Role: actor.Role, Target: holderOf(active)}) {
			return apperrors.ErrForbidden
		}
		if !lifecycle.FieldsEditable(eq.State) {
			return apperrors.NewGuardError(RuleFieldsLocked,
				"поля нельзя менять в состоянии «%s»", eq.State.Title()).
				WithDetails("state", string(eq.State))
		}
		// Без срока единицу не увидят ни авто-снятие, ни предупреждения.
		for _, u := range updates {
			if du, ok := u.(DeadlineUpdate); ok && du.Value == nil && lifecycle.DeadlineAudited(eq.State) {
				return apperrors.NewGuardError(RuleDeadlineRequired,
					"в состоянии «%s» срок нельзя очистить", eq.State.Title()).
					WithDetails("state", string(eq.State))
			}
		}

		log := newChangeLog(eq.ID, &actor.ID, entities.ChangeReasonManualEdit)
		changed := false
		for _, u := range updates {
			if u.apply(eq, log) {
				changed = true
			}
		}
		if changed {
			if err := s.equipmentRepo.Update(ctx, tx, eq); err != nil {
				return err
			}
			if err := s.changeLogRepo.Append(ctx, tx, log.entries...); err != nil {
				return err
			}
		}
		result = equipmentToDTO(eq)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Поля оборудования изменены вручную",
		zap.Uint64("equipmentID", equipmentID),
		zap.Uint64("actorID", actor.ID),
	)
	return &result, nil
}

func (s *EquipmentService) MarkDelivered(ctx context.Context, equipmentID uint64) (*dto.EquipmentResponseDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if !s.rules.Policy.CanDo(authz.EquipmentDeliver, authz.Context{ActorID: actor.ID, Role: actor.Role}) {
		return nil, apperrors.ErrForbidden
	}

	var (
		outbox []NotifyRequest
		result dto.EquipmentResponseDTO
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		outbox = nil

		eq, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, equipmentID)
		if err != nil {
			return err
		}
		next, err := lifecycle.Next(eq.State, lifecycle.EventDeliver)
		if err != nil {
			return err
		}
		active, err := s.reservationRepo.ListActiveForUpdate(ctx, tx, eq.ID)
		if err != nil {
			return err
		}

		eq.State = next
		if err := s.equipmentRepo.Update(ctx, tx, eq); err != nil {
			return err
		}

		req := NotifyRequest{
			ToOversight: true,
			Type:        entities.NotificationEquipmentDelivered,
			Title:       "Оборудование выдано",
			Message:     fmt.Sprintf("«%s» выдано клиенту %s", eq.Name, utils.SafeDeref(eq.Client)),
			Metadata:    map[string]interface{}{"equipment_id": eq.ID},
		}
		if holder := holderOf(active); holder != nil {
			req.Recipients = []uint64{holder.RequesterID}
			req.ReferenceID = utils.ToPtr(holder.ID)
		}
		outbox = append(outbox, req)

		result = equipmentToDTO(eq)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Оборудование выдано", zap.Uint64("equipmentID", equipmentID), zap.Uint64("actorID", actor.ID))
	dispatch(ctx, s.notifier, s.logger, outbox)
	return &result, nil
}

// RevertDelivered возвращает выданную единицу в свободные.
// Одобренная заявка закрывается, чтобы единица могла снова получить одобрение.
func (s *EquipmentService) RevertDelivered(ctx context.Context, equipmentID uint64, d dto.RevertDeliveredDTO) (*dto.EquipmentResponseDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if !s.rules.Policy.CanDo(authz.EquipmentRevert, authz.Context{ActorID: actor.ID, Role: actor.Role}) {
		return nil, apperrors.ErrForbidden
	}
	reason := strings.TrimSpace(d.Reason)
	if reason == "" {
		return nil, apperrors.NewInvalidInputError("необходимо указать причину возврата")
	}

	var (
		outbox []NotifyRequest
		result dto.EquipmentResponseDTO
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		outbox = nil

		eq, err := s.equipmentRepo.FindByIDForUpdate(ctx, tx, equipmentID)
		if err != nil {
			return err
		}
		next, err := lifecycle.Next(eq.State, lifecycle.EventRevert)
		if err != nil {
			return err
		}
		active, err := s.reservationRepo.ListActiveForUpdate(ctx, tx, eq.ID)
		if err != nil {
			return err
		}

		holder := holderOf(active)
		now := s.rules.Now()
		var recipients []uint64
		for _, r := range active {
			r.TakeSnapshot(eq)
			r.Status = entities.ReservationRejected
			r.RejectedAt = &now
			r.RejectedBy = utils.ToPtr(actor.ID)
			r.RejectionReason = utils.ToPtr(entities.ReasonDeliveryReverted)
			if err := s.reservationRepo.Update(ctx, tx, r); err != nil {
				return err
			}
			recipients = append(recipients, r.RequesterID)
		}

		log := newChangeLog(eq.ID, &actor.ID, entities.ChangeReasonDeliveryRevert+": "+reason)
		clearReservationFields(eq, log)
		eq.State = next
		if err := s.equipmentRepo.Update(ctx, tx, eq); err != nil {
			return err
		}
		if err := s.changeLogRepo.Append(ctx, tx, log.entries...); err != nil {
			return err
		}

		req := NotifyRequest{
			Recipients:  recipients,
			ToOversight: true,
			Type:        entities.NotificationDeliveryReverted,
			Title:       "Выдача отменена",
			Message:     fmt.Sprintf("Выдача «%s» отменена: %s", eq.Name, reason),
			Metadata:    map[string]interface{}{"equipment_id": eq.ID},
		}
		if holder != nil {
			req.ReferenceID = utils.ToPtr(holder.ID)
		}
		outbox = append(outbox, req)

		result = equipmentToDTO(eq)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Выдача отменена", zap.Uint64("equipmentID", equipmentID), zap.Uint64("actorID", actor.ID))
	dispatch(ctx, s.notifier, s.logger, outbox)
	return &result, nil
}
