package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"reservation-system/internal/controllers"
	"reservation-system/pkg/middleware"
)

// runMaintenanceRouter - эндпоинт для внешнего планировщика. JWT не используется:
// доступ по общему секрету, частота ограничена по IP.
func runMaintenanceRouter(apiGroup *echo.Group, ctrl *controllers.MaintenanceController, limiter *middleware.IPRateLimiter, secret string, logger *zap.Logger) {
	if secret == "" {
		logger.Warn("CRON_SECRET не задан: эндпоинт обслуживания будет отклонять все запросы")
	}
	cron := apiGroup.Group("/cron",
		middleware.RateLimit(limiter, logger),
		middleware.CronSecret(secret, logger),
	)
	cron.POST("/maintenance", ctrl.Run)
}
