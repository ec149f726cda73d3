package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"reservation-system/internal/listeners"
	"reservation-system/internal/routes"
	"reservation-system/internal/services"
	"reservation-system/pkg/config"
	"reservation-system/pkg/database/postgresql"
	apperrors "reservation-system/pkg/errors"
	"reservation-system/pkg/eventbus"
	applogger "reservation-system/pkg/logger"
	appmiddleware "reservation-system/pkg/middleware"
	"reservation-system/pkg/service"
	"reservation-system/pkg/utils"
	"reservation-system/pkg/validation"
	"reservation-system/pkg/websocket"
)

func main() {
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.FilePath)
	defer logger.Sync()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Неверная конфигурация", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()

	e.Use(middleware.RequestID())
	e.Use(appmiddleware.RequestLogger(logger))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.Server.BaseURL, "http://localhost:5173"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	dbConn := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbConn.Close()
	if cfg.Postgres.MigrateOnStart {
		if err := postgresql.Migrate(dbConn); err != nil {
			logger.Fatal("Ошибка применения миграций", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Backend == "redis" || cfg.Maintenance.LockBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			logger.Fatal("не удалось подключиться к Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
		}
		defer redisClient.Close()
	}

	if cfg.JWT.SecretKey == "" {
		logger.Fatal("JWT_SECRET_KEY не задан")
	}
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, 24*time.Hour, logger.Named("jwt"))

	bus := eventbus.New(logger.Named("eventbus"))
	hub := websocket.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	container, err := services.NewContainer(dbConn, redisClient, bus, cfg, logger)
	if err != nil {
		logger.Fatal("Ошибка инициализации сервисов", zap.Error(err))
	}
	// Состав ролей мог поменяться между запусками.
	if err := container.Directory.Invalidate(ctx); err != nil {
		logger.Warn("Не удалось сбросить кеш получателей", zap.Error(err))
	}

	wsNotifications := services.NewWebSocketNotificationService(hub, logger.Named("ws"))
	listeners.NewNotificationListener(wsNotifications, logger.Named("listener")).Register(bus)

	loggers := &routes.Loggers{
		Main:        logger,
		Auth:        logger.Named("auth"),
		Reservation: logger.Named("reservation"),
		Maintenance: logger.Named("maintenance"),
	}
	routes.InitRouter(e, container, hub, jwtSvc, loggers, cfg)

	go func() {
		logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Получен сигнал остановки, завершаем работу")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки HTTP-сервера", zap.Error(err))
	}
	if err := bus.Wait(shutdownCtx); err != nil {
		logger.Warn("Не все обработчики событий завершились", zap.Error(err))
	}
}
