package entities

import "time"

const (
	FieldClient       = "client"
	FieldAdvisor      = "advisor"
	FieldDeadlineDate = "deadline_date"
)

// Причины изменений, которые система записывает сама.
const (
	ChangeReasonRequested       = "reservation requested"
	ChangeReasonChecklist       = "checklist started"
	ChangeReasonApproved        = "reservation approved"
	ChangeReasonRejected        = "reservation rejected"
	ChangeReasonPromoted        = "promoted from queue"
	ChangeReasonDeadlineExpired = "deadline expired"
	ChangeReasonManualEdit      = "manual edit"
	ChangeReasonDeliveryRevert  = "delivery reverted"
)

// ChangeLogEntry - запись аудита по одному полю оборудования.
// ActorID == nil означает системное изменение.
type ChangeLogEntry struct {
	ID          uint64    `json:"id" db:"id"`
	EquipmentID uint64    `json:"equipment_id" db:"equipment_id"`
	Field       string    `json:"field" db:"field"`
	OldValue    *string   `json:"old_value" db:"old_value"`
	NewValue    *string   `json:"new_value" db:"new_value"`
	Reason      string    `json:"reason" db:"reason"`
	ActorID     *uint64   `json:"actor_id" db:"actor_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
