package routes

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"reservation-system/internal/controllers"
	"reservation-system/internal/services"
	"reservation-system/pkg/config"
	"reservation-system/pkg/middleware"
	"reservation-system/pkg/service"
	"reservation-system/pkg/websocket"
)

type Loggers struct {
	Main        *zap.Logger
	Auth        *zap.Logger
	Reservation *zap.Logger
	Maintenance *zap.Logger
}

func InitRouter(e *echo.Echo, svc *services.Container, hub *websocket.Hub, jwtSvc service.JWTService, loggers *Loggers, cfg *config.Config) {
	loggers.Main.Info("InitRouter: Начало создания маршрутов")

	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(jwtSvc, loggers.Auth)
	secureGroup := api.Group("", authMW.Auth)

	runEquipmentRouter(secureGroup, controllers.NewEquipmentController(svc.Equipment, loggers.Reservation))
	runReservationRouter(secureGroup, controllers.NewReservationController(svc.Reservations, loggers.Reservation))
	runNotificationRouter(secureGroup, controllers.NewNotificationController(svc.Notifications, loggers.Main))
	runCatalogRouter(secureGroup, controllers.NewCatalogController(svc.Catalog, svc.Rules.Policy, loggers.Main))

	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.Maintenance.TriggerRate), cfg.Maintenance.TriggerBurst, 10*time.Minute)
	runMaintenanceRouter(api, controllers.NewMaintenanceController(svc.Maintenance, loggers.Maintenance), limiter, cfg.Maintenance.CronSecret, loggers.Maintenance)

	wsController := controllers.NewWebSocketController(hub, jwtSvc, loggers.Main)
	e.GET("/ws", wsController.ServeWs)

	loggers.Main.Info("INIT_ROUTER: Создание маршрутов завершено")
}
