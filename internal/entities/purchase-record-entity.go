package entities

import "time"

// PurchaseRecord - строка из выгрузки закупок, источник данных для каталога оборудования.
type PurchaseRecord struct {
	ID                  uint64     `json:"id" db:"id"`
	ExternalID          string     `json:"external_id" db:"external_id"`
	Name                string     `json:"name" db:"name"`
	MovementLocation    *string    `json:"movement_location" db:"movement_location"`
	ShipmentDate        *time.Time `json:"shipment_date" db:"shipment_date"`
	ArrivalDate         *time.Time `json:"arrival_date" db:"arrival_date"`
	NationalizationDate *time.Time `json:"nationalization_date" db:"nationalization_date"`
	Specs               *string    `json:"specs" db:"specs"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}
