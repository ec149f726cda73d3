package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "reservation-system/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type HTTPResponse struct {
	Status  bool        `json:"status"`
	Body    interface{} `json:"body,omitempty"`
	Message string      `json:"message"`
}

func SuccessResponse(ctx echo.Context, body interface{}, message string, code int, total ...uint64) error {
	response := &HTTPResponse{Status: true, Message: message, Body: body}
	if len(total) > 0 {
		filter := ParseFilterFromQuery(ctx.Request().URL.Query())
		if filter.WithPagination {
			totalPages := 0
			if filter.Limit > 0 {
				totalPages = int((total[0] + uint64(filter.Limit) - 1) / uint64(filter.Limit))
			}
			response.Body = map[string]interface{}{
				"list": body,
				"pagination": map[string]interface{}{
					"total_count": total[0],
					"page":        filter.Page,
					"limit":       filter.Limit,
					"total_pages": totalPages,
				},
			}
		}
	}
	return ctx.JSON(code, response)
}

// ErrorResponse превращает ошибку приложения в JSON-ответ с подходящим HTTP-кодом.
func ErrorResponse(c echo.Context, err error, logger *zap.Logger) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		msgs := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("Поле '%s' не прошло проверку '%s'", e.Field(), e.Tag()))
		}
		return c.JSON(http.StatusBadRequest, HTTPResponse{Status: false, Message: "Ошибка валидации: " + strings.Join(msgs, "; ")})
	}

	code := apperrors.StatusCode(err)
	response := HTTPResponse{Status: false, Message: err.Error()}

	var httpErr *apperrors.HttpError
	var guardErr *apperrors.GuardError
	switch {
	case errors.As(err, &httpErr):
		response.Message = httpErr.Message
		if httpErr.Details != nil {
			response.Body = httpErr.Details
		}
		if httpErr.Err != nil && code >= http.StatusInternalServerError {
			logger.Error("HTTP Error", zap.Int("code", code), zap.String("message", httpErr.Message), zap.Error(httpErr.Err))
		}
		// Вложенная доменная ошибка важнее общего текста контроллера.
		if errors.As(httpErr.Err, &guardErr) {
			code = http.StatusUnprocessableEntity
			response.Message = guardErr.Message
			response.Body = guardBody(guardErr)
		}
	case errors.As(err, &guardErr):
		response.Message = guardErr.Message
		response.Body = guardBody(guardErr)
	case code >= http.StatusInternalServerError:
		logger.Error("Unexpected Error", zap.Error(err))
		response.Message = "Внутренняя ошибка сервера"
	}

	return c.JSON(code, response)
}

func guardBody(g *apperrors.GuardError) map[string]interface{} {
	body := map[string]interface{}{"rule": g.Rule}
	for k, v := range g.Details {
		body[k] = v
	}
	return body
}
