package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryCacheRepository - кеш в памяти процесса для окружений без Redis и для тестов.
type MemoryCacheRepository struct {
	store *cache.Cache
}

func NewMemoryCacheRepository(defaultTTL time.Duration) CacheRepositoryInterface {
	return &MemoryCacheRepository{store: cache.New(defaultTTL, 2*defaultTTL)}
}

func (r *MemoryCacheRepository) Get(_ context.Context, key string) (string, error) {
	v, ok := r.store.Get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	return v.(string), nil
}

// Set хранит значение строкой, как это делает Redis.
func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	if expiration <= 0 {
		expiration = cache.DefaultExpiration
	}
	r.store.Set(key, s, expiration)
	return nil
}

func (r *MemoryCacheRepository) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		r.store.Delete(k)
	}
	return nil
}
