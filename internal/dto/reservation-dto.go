package dto

import "github.com/aarondl/null/v8"

type CreateReservationDTO struct {
	// Обязателен, если единица свободна. Для заявки в очередь игнорируется.
	Client null.String `json:"client" validate:"omitempty,not_blank,max=255"`
}

// UpdateChecklistDTO - частичное обновление: не переданные флаги не меняются.
type UpdateChecklistDTO struct {
	DepositConfirmed null.Bool   `json:"deposit_confirmed"`
	TenPercentPaid   null.Bool   `json:"ten_percent_paid"`
	DocumentsSigned  null.Bool   `json:"documents_signed"`
	Client           null.String `json:"client" validate:"omitempty,not_blank,max=255"`
}

type RejectReservationDTO struct {
	Reason string `json:"reason" validate:"required,not_blank,max=500"`
}

type ChecklistDTO struct {
	DepositConfirmed   bool    `json:"deposit_confirmed"`
	TenPercentPaid     bool    `json:"ten_percent_paid"`
	DocumentsSigned    bool    `json:"documents_signed"`
	FirstChecklistDate *string `json:"first_checklist_date"`
}

type SnapshotDTO struct {
	Client   *string `json:"client"`
	Advisor  *string `json:"advisor"`
	Deadline *string `json:"deadline_date"`
}

type ReservationResponseDTO struct {
	ID              uint64       `json:"id"`
	EquipmentID     uint64       `json:"equipment_id"`
	RequesterID     uint64       `json:"requester_id"`
	Status          string       `json:"status"`
	QueuePosition   int          `json:"queue_position,omitempty"`
	Checklist       ChecklistDTO `json:"checklist"`
	ApprovedAt      *string      `json:"approved_at"`
	ApprovedBy      *uint64      `json:"approved_by"`
	RejectedAt      *string      `json:"rejected_at"`
	RejectedBy      *uint64      `json:"rejected_by"`
	RejectionReason *string      `json:"rejection_reason"`
	Snapshot        SnapshotDTO  `json:"snapshot"`
	CreatedAt       string       `json:"created_at"`
}

// ReservationResultDTO - ответ на команду: заявка и состояние единицы после неё.
type ReservationResultDTO struct {
	Reservation ReservationResponseDTO `json:"reservation"`
	Equipment   EquipmentResponseDTO   `json:"equipment"`
}
