package dto

import "time"

// MaintenanceResultDTO - итог одного запуска обслуживания.
// Executed=false означает, что задачу уже выполняет другой экземпляр.
type MaintenanceResultDTO struct {
	Executed          bool       `json:"executed"`
	CorrelationID     string     `json:"correlation_id"`
	SeparatedWarnings int        `json:"separated_warnings"`
	Expired           int        `json:"expired"`
	ReservedWarnings  int        `json:"reserved_warnings"`
	CatalogCreated    int        `json:"catalog_created"`
	CatalogUpdated    int        `json:"catalog_updated"`
	Failures          int        `json:"failures"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

type CatalogImportResultDTO struct {
	RowsRead int `json:"rows_read"`
	Skipped  int `json:"skipped"`
	Upserted int `json:"upserted"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
}
