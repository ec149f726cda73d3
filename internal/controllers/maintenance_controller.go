package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"reservation-system/internal/services"
	"reservation-system/pkg/utils"
)

// CorrelationHeader - необязательный идентификатор запуска от планировщика.
const CorrelationHeader = "X-Correlation-ID"

type MaintenanceController struct {
	maintenanceService services.MaintenanceServiceInterface
	logger             *zap.Logger
}

func NewMaintenanceController(service services.MaintenanceServiceInterface, logger *zap.Logger) *MaintenanceController {
	return &MaintenanceController{maintenanceService: service, logger: logger}
}

// Run - POST /cron/maintenance. Доступ проверяет middleware.CronSecret.
func (c *MaintenanceController) Run(ctx echo.Context) error {
	correlationID := ctx.Request().Header.Get(CorrelationHeader)

	res, err := c.maintenanceService.Run(ctx.Request().Context(), correlationID)
	if err != nil {
		c.logger.Error("Обслуживание завершилось с ошибкой", zap.Error(err), zap.String("correlation_id", correlationID))
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if !res.Executed {
		return utils.SuccessResponse(ctx, res, "Обслуживание уже выполняется другим экземпляром", http.StatusOK)
	}
	return utils.SuccessResponse(ctx, res, "Обслуживание выполнено", http.StatusOK)
}
