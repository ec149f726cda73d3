package services

import (
	"time"

	"reservation-system/internal/dto"
	"reservation-system/internal/entities"
	"reservation-system/pkg/utils"
)

const timestampLayout = "2006-01-02 15:04:05"

func formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Local().Format(timestampLayout)
	return &s
}

func equipmentToDTO(e *entities.Equipment) dto.EquipmentResponseDTO {
	out := dto.EquipmentResponseDTO{
		ID:                  e.ID,
		Name:                e.Name,
		ExternalID:          e.ExternalID,
		State:               e.State.String(),
		StateTitle:          e.State.Title(),
		Client:              e.Client,
		Advisor:             e.Advisor,
		DeadlineDate:        utils.DateString(e.DeadlineDate),
		DeadlineModified:    e.DeadlineModified,
		MovementLocation:    e.MovementLocation,
		ShipmentDate:        utils.DateString(e.ShipmentDate),
		ArrivalDate:         utils.DateString(e.ArrivalDate),
		NationalizationDate: utils.DateString(e.NationalizationDate),
		Specs:               e.Specs,
	}
	if ts := formatTimestamp(e.UpdatedAt); ts != nil {
		out.UpdatedAt = *ts
	}
	return out
}

func reservationToDTO(r *entities.Reservation, position int) dto.ReservationResponseDTO {
	return dto.ReservationResponseDTO{
		ID:            r.ID,
		EquipmentID:   r.EquipmentID,
		RequesterID:   r.RequesterID,
		Status:        string(r.Status),
		QueuePosition: position,
		Checklist: dto.ChecklistDTO{
			DepositConfirmed:   r.DepositConfirmed,
			TenPercentPaid:     r.TenPercentPaid,
			DocumentsSigned:    r.DocumentsSigned,
			FirstChecklistDate: formatTimestamp(r.FirstChecklistDate),
		},
		ApprovedAt:      formatTimestamp(r.ApprovedAt),
		ApprovedBy:      r.ApprovedBy,
		RejectedAt:      formatTimestamp(r.RejectedAt),
		RejectedBy:      r.RejectedBy,
		RejectionReason: r.RejectionReason,
		Snapshot: dto.SnapshotDTO{
			Client:   r.SnapshotClient,
			Advisor:  r.SnapshotAdvisor,
			Deadline: utils.DateString(r.SnapshotDeadline),
		},
		CreatedAt: r.CreatedAt.Local().Format(timestampLayout),
	}
}

func resultDTO(r *entities.Reservation, e *entities.Equipment, position int) *dto.ReservationResultDTO {
	return &dto.ReservationResultDTO{
		Reservation: reservationToDTO(r, position),
		Equipment:   equipmentToDTO(e),
	}
}

func changeLogToDTO(c entities.ChangeLogEntry) dto.ChangeLogDTO {
	return dto.ChangeLogDTO{
		ID:        c.ID,
		Field:     c.Field,
		OldValue:  c.OldValue,
		NewValue:  c.NewValue,
		Reason:    c.Reason,
		ActorID:   c.ActorID,
		CreatedAt: c.CreatedAt.Local().Format(timestampLayout),
	}
}

func notificationToDTO(n entities.Notification) dto.NotificationDTO {
	return dto.NotificationDTO{
		ID:          n.ID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		ReferenceID: n.ReferenceID,
		ActionRef:   n.ActionRef,
		Metadata:    n.Metadata,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt.Local().Format(timestampLayout),
	}
}

// changeLog собирает записи аудита. Неизменённые поля пропускаются.
type changeLog struct {
	equipmentID uint64
	actorID     *uint64
	reason      string
	entries     []entities.ChangeLogEntry
}

func newChangeLog(equipmentID uint64, actorID *uint64, reason string) *changeLog {
	return &changeLog{equipmentID: equipmentID, actorID: actorID, reason: reason}
}

func (l *changeLog) str(field string, oldVal, newVal *string) {
	if !utils.DiffPtr(oldVal, newVal) {
		return
	}
	l.entries = append(l.entries, entities.ChangeLogEntry{
		EquipmentID: l.equipmentID,
		Field:       field,
		OldValue:    oldVal,
		NewValue:    newVal,
		Reason:      l.reason,
		ActorID:     l.actorID,
	})
}

func (l *changeLog) date(field string, oldVal, newVal *time.Time) {
	l.str(field, utils.DateString(oldVal), utils.DateString(newVal))
}

// queuePosition - позиция заявки среди ожидающих (с 1), 0 если её нет в очереди.
func queuePosition(active []*entities.Reservation, id uint64) int {
	pos := 0
	for _, r := range active {
		if r.Status != entities.ReservationPending {
			continue
		}
		pos++
		if r.ID == id {
			return pos
		}
	}
	return 0
}

// queueHead - первая ожидающая заявка, которая удерживает единицу.
func queueHead(active []*entities.Reservation) *entities.Reservation {
	for _, r := range active {
		if r.Status == entities.ReservationPending {
			return r
		}
	}
	return nil
}

// holderOf - заявка, удерживающая единицу: одобренная, иначе голова очереди.
func holderOf(active []*entities.Reservation) *entities.Reservation {
	for _, r := range active {
		if r.Status == entities.ReservationApproved {
			return r
		}
	}
	return queueHead(active)
}
