package middleware

import (
	"crypto/subtle"

	apperrors "reservation-system/pkg/errors"
	"reservation-system/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const CronSecretHeader = "X-Cron-Secret"

// CronSecret пропускает только запросы планировщика с общим секретом.
// Пустой секрет в конфигурации закрывает эндпоинт полностью.
func CronSecret(secret string, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(CronSecretHeader)
			if secret == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.Warn("CronSecret: отклонён запрос без корректного секрета", zap.String("ip", c.RealIP()))
				return utils.ErrorResponse(c, apperrors.ErrInvalidCronSecret, logger)
			}
			return next(c)
		}
	}
}
