// Команда maintenance - однократный запуск обслуживания для системного cron.
//
//	maintenance [-correlation ID] [-import compras.xlsx]
//
// Код выхода 0 - задача выполнена или уже выполняется другим экземпляром, 1 - ошибка.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"reservation-system/internal/services"
	"reservation-system/pkg/config"
	"reservation-system/pkg/database/postgresql"
	"reservation-system/pkg/eventbus"
	applogger "reservation-system/pkg/logger"
)

func main() {
	correlationID := flag.String("correlation", "", "идентификатор запуска для логов")
	importPath := flag.String("import", "", "выгрузка закупок .xlsx для загрузки перед запуском")
	flag.Parse()

	os.Exit(run(*correlationID, *importPath))
}

func run(correlationID, importPath string) int {
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.FilePath).Named("maintenance")
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("Неверная конфигурация", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbConn.Close()

	var redisClient *redis.Client
	if cfg.Cache.Backend == "redis" || cfg.Maintenance.LockBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	// Уведомления сохраняются в ленту, онлайн-доставки из команды нет.
	bus := eventbus.New(logger)
	container, err := services.NewContainer(dbConn, redisClient, bus, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации сервисов", zap.Error(err))
		return 1
	}

	if importPath != "" {
		f, err := os.Open(importPath)
		if err != nil {
			logger.Error("Не удалось открыть файл выгрузки", zap.String("path", importPath), zap.Error(err))
			return 1
		}
		res, err := container.Catalog.ImportWorkbook(ctx, f)
		f.Close()
		if err != nil {
			logger.Error("Ошибка импорта выгрузки закупок", zap.String("path", importPath), zap.Error(err))
			return 1
		}
		logger.Info("Выгрузка закупок загружена",
			zap.Int("rows", res.RowsRead), zap.Int("skipped", res.Skipped), zap.Int("upserted", res.Upserted))
	}

	res, err := container.Maintenance.Run(ctx, correlationID)
	if err != nil {
		logger.Error("Обслуживание завершилось с ошибкой", zap.Error(err))
		return 1
	}
	if !res.Executed {
		logger.Info("Обслуживание уже выполняется другим экземпляром")
		return 0
	}
	logger.Info("Обслуживание выполнено",
		zap.String("correlation_id", res.CorrelationID),
		zap.Int("expired", res.Expired),
		zap.Int("separated_warnings", res.SeparatedWarnings),
		zap.Int("reserved_warnings", res.ReservedWarnings),
		zap.Int("failures", res.Failures),
	)
	return 0
}
