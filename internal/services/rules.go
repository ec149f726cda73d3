package services

import (
	"time"

	"reservation-system/internal/authz"
	"reservation-system/pkg/calendar"
	"reservation-system/pkg/config"
)

// Правила, нарушение которых возвращается как GuardError.
const (
	RuleDuplicateRequest      = "duplicate_request"
	RuleAlreadyApproved       = "already_approved"
	RuleReservationClosed     = "reservation_not_active"
	RuleNotPending            = "reservation_not_pending"
	RuleNotQueueHead          = "not_queue_head"
	RuleChecklistState        = "checklist_not_allowed"
	RuleChecklistIncomplete   = "checklist_incomplete"
	RuleApprovalWindowExpired = "approval_window_expired"
	RuleEquipmentDelivered    = "equipment_delivered"
	RuleFieldsLocked          = "fields_not_editable"
	RuleDeadlineRequired      = "deadline_required"
)

// Rules - бизнес-календарь и сроки резервирования.
type Rules struct {
	Calendar *calendar.Calendar
	Policy   *authz.Policy

	ReserveDays           int
	SeparationDays        int
	ApprovalWindowDays    int
	SeparatedWarningDays  int
	ReservedWarningDays   int
	ReservedWarningWindow int

	Now func() time.Time
}

func NewRules(cfg config.BusinessConfig) (*Rules, error) {
	cal, err := calendar.FromConfig(cfg.Timezone, cfg.Holidays)
	if err != nil {
		return nil, err
	}
	return &Rules{
		Calendar:              cal,
		Policy:                authz.NewPolicy(cfg.OversightRoles),
		ReserveDays:           cfg.ReserveDays,
		SeparationDays:        cfg.SeparationDays,
		ApprovalWindowDays:    cfg.ApprovalWindowDays,
		SeparatedWarningDays:  cfg.SeparatedWarningDays,
		ReservedWarningDays:   cfg.ReservedWarningDays,
		ReservedWarningWindow: cfg.ReservedWarningWindow,
		Now:                   time.Now,
	}, nil
}

func (r *Rules) Today() time.Time {
	return r.Calendar.Today(r.Now())
}

// ReserveDeadline - срок для резерва с начатым чек-листом.
func (r *Rules) ReserveDeadline() time.Time {
	return r.Calendar.AddBusinessDays(r.Today(), r.ReserveDays)
}

// SeparationDeadline - срок для отделенной (одобренной) единицы.
func (r *Rules) SeparationDeadline() time.Time {
	return r.Calendar.AddBusinessDays(r.Today(), r.SeparationDays)
}

func (r *Rules) IsOversight(role string) bool {
	return r.Policy.IsOversight(role)
}
