package validation

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// registerRules регистрирует теги, которые мы используем в struct tags
func registerRules(v *validator.Validate) error {
	if err := v.RegisterValidation("not_blank", isNotBlank); err != nil {
		return err
	}
	if err := v.RegisterValidation("civil_date", isCivilDate); err != nil {
		return err
	}
	return nil
}

// isNotBlank - строка не состоит из одних пробелов
func isNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// isCivilDate - дата в формате YYYY-MM-DD
func isCivilDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}
