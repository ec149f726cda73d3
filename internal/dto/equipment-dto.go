package dto

import "github.com/aarondl/null/v8"

// UpdateEquipmentFieldsDTO - ручная правка полей резервирования.
// Пустая строка очищает поле, отсутствующее поле не меняется.
type UpdateEquipmentFieldsDTO struct {
	Client       null.String `json:"client" validate:"omitempty,max=255"`
	Advisor      null.String `json:"advisor" validate:"omitempty,max=255"`
	DeadlineDate null.String `json:"deadline_date" validate:"omitempty,civil_date"`
}

type RevertDeliveredDTO struct {
	Reason string `json:"reason" validate:"required,not_blank,max=500"`
}

type EquipmentResponseDTO struct {
	ID                  uint64  `json:"id"`
	Name                string  `json:"name"`
	ExternalID          *string `json:"external_id,omitempty"`
	State               string  `json:"state"`
	StateTitle          string  `json:"state_title"`
	Client              *string `json:"client"`
	Advisor             *string `json:"advisor"`
	DeadlineDate        *string `json:"deadline_date"`
	DeadlineModified    bool    `json:"deadline_modified"`
	MovementLocation    *string `json:"movement_location,omitempty"`
	ShipmentDate        *string `json:"shipment_date,omitempty"`
	ArrivalDate         *string `json:"arrival_date,omitempty"`
	NationalizationDate *string `json:"nationalization_date,omitempty"`
	Specs               *string `json:"specs,omitempty"`
	UpdatedAt           string  `json:"updated_at,omitempty"`
}

type ChangeLogDTO struct {
	ID        uint64  `json:"id"`
	Field     string  `json:"field"`
	OldValue  *string `json:"old_value"`
	NewValue  *string `json:"new_value"`
	Reason    string  `json:"reason"`
	ActorID   *uint64 `json:"actor_id"`
	CreatedAt string  `json:"created_at"`
}
