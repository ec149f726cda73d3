package services

import (
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"reservation-system/internal/locker"
	"reservation-system/internal/repositories"
	"reservation-system/pkg/config"
	"reservation-system/pkg/eventbus"
)

// Container - все сервисы приложения, собранные над одним пулом БД.
// Его используют и HTTP-сервер, и консольная команда обслуживания.
type Container struct {
	Rules         *Rules
	Directory     OversightDirectoryInterface
	Notifications NotificationServiceInterface
	Reservations  ReservationServiceInterface
	Equipment     EquipmentServiceInterface
	Catalog       CatalogSyncServiceInterface
	Maintenance   MaintenanceServiceInterface
}

// NewContainer собирает сервисы. rdb может быть nil: тогда кеш и блокировка
// должны быть настроены на postgres или memory.
func NewContainer(pool *pgxpool.Pool, rdb *redis.Client, bus *eventbus.Bus, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	rules, err := NewRules(cfg.Business)
	if err != nil {
		return nil, err
	}

	var cacheRepo repositories.CacheRepositoryInterface
	if cfg.Cache.Backend == "redis" && rdb != nil {
		cacheRepo = repositories.NewRedisCacheRepository(rdb)
	} else {
		cacheRepo = repositories.NewMemoryCacheRepository(cfg.Cache.OversightTTL)
	}

	lk, err := locker.New(cfg.Maintenance.LockBackend, pool, rdb, cfg.Maintenance.LeaseTTL, logger.Named("locker"))
	if err != nil {
		return nil, err
	}

	txManager := repositories.NewTxManager(pool, logger)
	userRepo := repositories.NewUserRepository(pool, logger)
	equipmentRepo := repositories.NewEquipmentRepository(pool, logger)
	reservationRepo := repositories.NewReservationRepository(pool, logger)
	changeLogRepo := repositories.NewChangeLogRepository(pool)
	notificationRepo := repositories.NewNotificationRepository(pool, logger)
	catalogRepo := repositories.NewCatalogRepository(pool)

	directory := NewOversightDirectory(userRepo, cacheRepo, cfg.Business.OversightRoles, cfg.Cache.OversightTTL, logger)
	notifications := NewNotificationService(notificationRepo, directory, bus, logger.Named("notifications"))
	promoter := NewQueuePromoter(equipmentRepo, reservationRepo, userRepo, changeLogRepo, rules, logger)
	catalog := NewCatalogSyncService(catalogRepo, rules.Calendar.Location(), logger.Named("catalog"))

	return &Container{
		Rules:         rules,
		Directory:     directory,
		Notifications: notifications,
		Reservations: NewReservationService(
			txManager, equipmentRepo, reservationRepo, userRepo, changeLogRepo,
			promoter, notifications, rules, logger.Named("reservations"),
		),
		Equipment: NewEquipmentService(
			txManager, equipmentRepo, reservationRepo, changeLogRepo,
			notifications, rules, logger.Named("equipment"),
		),
		Catalog: catalog,
		Maintenance: NewMaintenanceService(
			lk, txManager, equipmentRepo, reservationRepo, promoter,
			notifications, directory, catalog, rules, cfg.Maintenance, logger.Named("maintenance"),
		),
	}, nil
}
