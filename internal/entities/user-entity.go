package entities

import (
	"reservation-system/pkg/types"
)

// User - локальная копия учётной записи. Аутентификация выполняется снаружи.
type User struct {
	ID   uint64 `json:"id" db:"id"`
	Fio  string `json:"fio" db:"fio"`
	Role string `json:"role" db:"role"`

	types.BaseEntity
}
