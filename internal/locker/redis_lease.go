package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу токена.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLeaseLocker - аренда ключа в Redis с ограниченным сроком жизни.
// Если процесс упал, ключ освобождается по истечении ttl.
type RedisLeaseLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLeaseLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLeaseLocker {
	return &RedisLeaseLocker{client: client, ttl: ttl, logger: logger, tokens: make(map[string]string)}
}

func leaseKey(key string) string { return "lock:" + key }

func (l *RedisLeaseLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, leaseKey(key), token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка SETNX для блокировки: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

func (l *RedisLeaseLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	n, err := releaseScript.Run(ctx, l.client, []string{leaseKey(key)}, token).Int()
	if err != nil {
		return fmt.Errorf("ошибка снятия блокировки в Redis: %w", err)
	}
	if n == 0 {
		l.logger.Warn("Аренда блокировки истекла до освобождения", zap.String("key", key))
	}
	return nil
}
