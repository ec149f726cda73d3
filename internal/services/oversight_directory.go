package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"reservation-system/internal/repositories"
)

const oversightCacheKey = "oversight:recipients"

type OversightDirectoryInterface interface {
	// RecipientIDs - пользователи контролирующих ролей.
	RecipientIDs(ctx context.Context) ([]uint64, error)
	Invalidate(ctx context.Context) error
}

// OversightDirectory кеширует список получателей с ограниченным сроком жизни.
// Ошибки кеша не мешают работе: список берётся из БД.
type OversightDirectory struct {
	userRepo repositories.UserRepositoryInterface
	cache    repositories.CacheRepositoryInterface
	roles    []string
	ttl      time.Duration
	logger   *zap.Logger
}

func NewOversightDirectory(
	userRepo repositories.UserRepositoryInterface,
	cache repositories.CacheRepositoryInterface,
	roles []string,
	ttl time.Duration,
	logger *zap.Logger,
) OversightDirectoryInterface {
	return &OversightDirectory{userRepo: userRepo, cache: cache, roles: roles, ttl: ttl, logger: logger}
}

func (d *OversightDirectory) RecipientIDs(ctx context.Context) ([]uint64, error) {
	cached, err := d.cache.Get(ctx, oversightCacheKey)
	if err == nil {
		var ids []uint64
		if jsonErr := json.Unmarshal([]byte(cached), &ids); jsonErr == nil {
			return ids, nil
		}
		d.logger.Warn("Повреждённое значение в кеше получателей, перечитываем из БД")
	} else if !errors.Is(err, repositories.ErrCacheMiss) {
		d.logger.Warn("Кеш получателей недоступен", zap.Error(err))
	}

	users, err := d.userRepo.FindByRoles(ctx, d.roles)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	if payload, err := json.Marshal(ids); err == nil {
		if err := d.cache.Set(ctx, oversightCacheKey, payload, d.ttl); err != nil {
			d.logger.Warn("Не удалось сохранить получателей в кеш", zap.Error(err))
		}
	}
	return ids, nil
}

func (d *OversightDirectory) Invalidate(ctx context.Context) error {
	return d.cache.Del(ctx, oversightCacheKey)
}
