package entities

import "time"

const (
	NotificationReservationRequested = "RESERVATION_REQUESTED"
	NotificationReservationQueued    = "RESERVATION_QUEUED"
	NotificationChecklistStarted     = "CHECKLIST_STARTED"
	NotificationReservationApproved  = "RESERVATION_APPROVED"
	NotificationReservationRejected  = "RESERVATION_REJECTED"
	NotificationFirstInLine          = "RESERVATION_FIRST_IN_LINE"
	NotificationEquipmentReleased    = "EQUIPMENT_RELEASED"
	NotificationReservationExpired   = "RESERVATION_EXPIRED"
	NotificationSeparatedWarning     = "SEPARATED_DEADLINE_WARNING"
	NotificationReservedWarning      = "RESERVED_DEADLINE_WARNING"
	NotificationEquipmentDelivered   = "EQUIPMENT_DELIVERED"
	NotificationDeliveryReverted     = "DELIVERY_REVERTED"
)

type Notification struct {
	ID          uint64                 `json:"id" db:"id"`
	RecipientID uint64                 `json:"recipient_id" db:"recipient_id"`
	Type        string                 `json:"type" db:"type"`
	Title       string                 `json:"title" db:"title"`
	Message     string                 `json:"message" db:"message"`
	ReferenceID *uint64                `json:"reference_id" db:"reference_id"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	ActionRef   *string                `json:"action_ref,omitempty" db:"action_ref"`
	IsRead      bool                   `json:"is_read" db:"is_read"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}
