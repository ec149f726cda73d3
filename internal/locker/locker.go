// Package locker - взаимное исключение между экземплярами сервиса для фоновых задач.
package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Locker - неблокирующая попытка стать единственным исполнителем задачи.
type Locker interface {
	// TryAcquire возвращает false без ошибки, если ключ уже удерживает другой процесс.
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// New выбирает реализацию по названию бэкенда из конфигурации.
func New(backend string, pool *pgxpool.Pool, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) (Locker, error) {
	switch backend {
	case BackendPostgres, "":
		return NewPgAdvisoryLocker(pool, logger), nil
	case BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("locker: для бэкенда redis нужен клиент Redis")
		}
		return NewRedisLeaseLocker(rdb, ttl, logger), nil
	case BackendMemory:
		return NewMemoryLeaseLocker(ttl), nil
	}
	return nil, fmt.Errorf("locker: неизвестный бэкенд %q", backend)
}
