package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "reservation-system/pkg/errors"
)

// parseIDParam читает числовой параметр пути.
func parseIDParam(ctx echo.Context, name string) (uint64, error) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewHttpError(
			http.StatusBadRequest,
			"Неверный формат ID",
			apperrors.ErrBadRequest,
			map[string]interface{}{"param": name, "value": raw},
		)
	}
	return id, nil
}

// bindAndValidate - общий разбор тела запроса.
func bindAndValidate(ctx echo.Context, payload interface{}) error {
	if err := ctx.Bind(payload); err != nil {
		return apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат данных в теле запроса", err, nil)
	}
	return ctx.Validate(payload)
}
