// internal/authz/permissions.go
package authz

// --- ДЕЙСТВИЯ НАД РЕЗЕРВИРОВАНИЯМИ И ОБОРУДОВАНИЕМ ---

const (
	// Заявки (Reservations)
	ReservationsCreate    = "reservations:create"
	ReservationsView      = "reservations:view"
	ReservationsChecklist = "reservations:checklist"
	ReservationsApprove   = "reservations:approve"
	ReservationsReject    = "reservations:reject"

	// Оборудование (Equipment)
	EquipmentView    = "equipment:view"
	EquipmentUpdate  = "equipment:update"
	EquipmentDeliver = "equipment:deliver"
	EquipmentRevert  = "equipment:revert"

	// Каталог закупок
	CatalogImport = "catalog:import"
)

// oversightOnly - действия, доступные только контролирующим ролям.
var oversightOnly = map[string]bool{
	ReservationsApprove: true,
	EquipmentDeliver:    true,
	EquipmentRevert:     true,
	CatalogImport:       true,
}

// ownerScoped - действия, доступные автору заявки над своей заявкой.
var ownerScoped = map[string]bool{
	ReservationsChecklist: true,
	ReservationsReject:    true,
	EquipmentUpdate:       true,
}
