// Package lifecycle описывает жизненный цикл единицы оборудования
// в виде явной таблицы переходов (состояние, событие) -> состояние.
package lifecycle

import (
	apperrors "reservation-system/pkg/errors"
)

type State string

const (
	StateFree        State = "FREE"
	StatePreReserved State = "PRE_RESERVED"
	StateReserved    State = "RESERVED"
	StateSeparated   State = "SEPARATED"
	StateDelivered   State = "DELIVERED"
)

type Event string

const (
	EventRequest        Event = "REQUEST"
	EventEnqueue        Event = "ENQUEUE"
	EventStartChecklist Event = "START_CHECKLIST"
	EventApprove        Event = "APPROVE"
	EventExpire         Event = "EXPIRE"
	EventRelease        Event = "RELEASE"
	EventPromote        Event = "PROMOTE"
	EventDeliver        Event = "DELIVER"
	EventRevert         Event = "REVERT"
)

var States = []State{StateFree, StatePreReserved, StateReserved, StateSeparated, StateDelivered}

var Events = []Event{
	EventRequest, EventEnqueue, EventStartChecklist, EventApprove, EventExpire,
	EventRelease, EventPromote, EventDeliver, EventRevert,
}

const RuleTransition = "transition_not_allowed"

type transitionKey struct {
	from  State
	event Event
}

var transitions = map[transitionKey]State{
	{StateFree, EventRequest}: StatePreReserved,

	{StatePreReserved, EventEnqueue}: StatePreReserved,
	{StateReserved, EventEnqueue}:    StateReserved,

	{StatePreReserved, EventStartChecklist}: StateReserved,

	{StateReserved, EventApprove}: StateSeparated,
	{StateReserved, EventExpire}:  StateFree,

	{StatePreReserved, EventRelease}: StateFree,
	{StateReserved, EventRelease}:    StateFree,
	{StateSeparated, EventRelease}:   StateFree,

	{StatePreReserved, EventPromote}: StateReserved,
	{StateReserved, EventPromote}:    StateReserved,
	{StateSeparated, EventPromote}:   StateReserved,

	{StateSeparated, EventDeliver}: StateDelivered,
	{StateDelivered, EventRevert}:  StateFree,
}

var stateTitles = map[State]string{
	StateFree:        "свободно",
	StatePreReserved: "предварительный резерв",
	StateReserved:    "зарезервировано",
	StateSeparated:   "отделено",
	StateDelivered:   "выдано",
}

func (s State) Valid() bool {
	_, ok := stateTitles[s]
	return ok
}

// Title - человекочитаемое название для сообщений и уведомлений.
func (s State) Title() string {
	if t, ok := stateTitles[s]; ok {
		return t
	}
	return string(s)
}

func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", apperrors.NewInvalidInputError("неизвестное состояние оборудования: %q", s)
	}
	return st, nil
}

// Next возвращает целевое состояние или GuardError, если переход запрещён.
func Next(from State, event Event) (State, error) {
	to, ok := transitions[transitionKey{from, event}]
	if !ok {
		return "", apperrors.NewGuardError(RuleTransition,
			"операция %s недопустима для оборудования в состоянии «%s»", event, from.Title()).
			WithDetails("state", string(from)).
			WithDetails("event", string(event))
	}
	return to, nil
}

func Can(from State, event Event) bool {
	_, ok := transitions[transitionKey{from, event}]
	return ok
}

// FieldsEditable: клиент, консультант и срок существуют только в активных состояниях.
func FieldsEditable(s State) bool {
	switch s {
	case StatePreReserved, StateReserved, StateSeparated:
		return true
	}
	return false
}

// DeadlineAudited: ручная правка срока в этих состояниях помечается флагом deadline_modified.
func DeadlineAudited(s State) bool {
	return s == StateReserved || s == StateSeparated
}

func (e Event) String() string { return string(e) }

func (s State) String() string { return string(s) }
