package entities

import "time"

type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "PENDING"
	ReservationApproved ReservationStatus = "APPROVED"
	ReservationRejected ReservationStatus = "REJECTED"
)

const (
	ReasonAnotherApproved  = "another request approved"
	ReasonDeadlineExpired  = "deadline expired"
	ReasonDeliveryReverted = "delivery reverted"
)

type Reservation struct {
	ID          uint64            `json:"id" db:"id"`
	EquipmentID uint64            `json:"equipment_id" db:"equipment_id"`
	RequesterID uint64            `json:"requester_id" db:"requester_id"`
	Status      ReservationStatus `json:"status" db:"status"`

	DepositConfirmed   bool       `json:"deposit_confirmed" db:"deposit_confirmed"`
	TenPercentPaid     bool       `json:"ten_percent_paid" db:"ten_percent_paid"`
	DocumentsSigned    bool       `json:"documents_signed" db:"documents_signed"`
	FirstChecklistDate *time.Time `json:"first_checklist_date" db:"first_checklist_date"`

	ApprovedAt      *time.Time `json:"approved_at" db:"approved_at"`
	ApprovedBy      *uint64    `json:"approved_by" db:"approved_by"`
	RejectedAt      *time.Time `json:"rejected_at" db:"rejected_at"`
	RejectedBy      *uint64    `json:"rejected_by" db:"rejected_by"`
	RejectionReason *string    `json:"rejection_reason" db:"rejection_reason"`

	SnapshotClient   *string    `json:"snapshot_client" db:"snapshot_client"`
	SnapshotAdvisor  *string    `json:"snapshot_advisor" db:"snapshot_advisor"`
	SnapshotDeadline *time.Time `json:"snapshot_deadline" db:"snapshot_deadline"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (r *Reservation) IsActive() bool {
	return r.Status == ReservationPending || r.Status == ReservationApproved
}

func (r *Reservation) CheckedCount() int {
	n := 0
	for _, v := range []bool{r.DepositConfirmed, r.TenPercentPaid, r.DocumentsSigned} {
		if v {
			n++
		}
	}
	return n
}

// MissingItems перечисляет незаполненные пункты чек-листа.
func (r *Reservation) MissingItems() []string {
	var missing []string
	if !r.DepositConfirmed {
		missing = append(missing, "deposit_confirmed")
	}
	if !r.TenPercentPaid {
		missing = append(missing, "ten_percent_paid")
	}
	if !r.DocumentsSigned {
		missing = append(missing, "documents_signed")
	}
	return missing
}

// TakeSnapshot копирует текущие поля оборудования в резервирование.
func (r *Reservation) TakeSnapshot(e *Equipment) {
	r.SnapshotClient = copyString(e.Client)
	r.SnapshotAdvisor = copyString(e.Advisor)
	r.SnapshotDeadline = copyTime(e.DeadlineDate)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
