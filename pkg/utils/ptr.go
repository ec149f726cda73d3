package utils

import "time"

func SafeDeref[T any](ptr *T) T {
	if ptr == nil {
		var zero T
		return zero
	}
	return *ptr
}

func DiffPtr[T comparable](oldVal, newVal *T) bool {
	if oldVal == nil && newVal == nil {
		return false
	}
	if oldVal == nil || newVal == nil {
		return true
	}
	return *oldVal != *newVal
}

func ToPtr[T any](v T) *T {
	return &v
}

// DateString форматирует дату для журнала изменений и уведомлений.
func DateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

// DiffDate сравнивает даты без учёта времени суток и часового пояса.
func DiffDate(oldVal, newVal *time.Time) bool {
	return DiffPtr(DateString(oldVal), DateString(newVal))
}
