package entities

import (
	"time"

	"reservation-system/internal/lifecycle"
	"reservation-system/pkg/types"
)

type Equipment struct {
	ID         uint64          `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	ExternalID *string         `json:"external_id,omitempty" db:"external_id"`
	State      lifecycle.State `json:"state" db:"state"`

	Client           *string    `json:"client" db:"client"`
	Advisor          *string    `json:"advisor" db:"advisor"`
	DeadlineDate     *time.Time `json:"deadline_date" db:"deadline_date"`
	DeadlineModified bool       `json:"deadline_modified" db:"deadline_modified"`

	// Поля, зеркалируемые из закупок.
	MovementLocation    *string    `json:"movement_location,omitempty" db:"movement_location"`
	ShipmentDate        *time.Time `json:"shipment_date,omitempty" db:"shipment_date"`
	ArrivalDate         *time.Time `json:"arrival_date,omitempty" db:"arrival_date"`
	NationalizationDate *time.Time `json:"nationalization_date,omitempty" db:"nationalization_date"`
	Specs               *string    `json:"specs,omitempty" db:"specs"`

	types.BaseEntity
}

// Holding - единица оборудования вместе с резервированием, которое её удерживает.
type Holding struct {
	Equipment   Equipment
	Reservation Reservation
}
