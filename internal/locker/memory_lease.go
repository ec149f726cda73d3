package locker

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryLeaseLocker - аренда в памяти одного процесса (один экземпляр, тесты).
type MemoryLeaseLocker struct {
	leases *cache.Cache
	ttl    time.Duration
}

func NewMemoryLeaseLocker(ttl time.Duration) *MemoryLeaseLocker {
	return &MemoryLeaseLocker{leases: cache.New(ttl, time.Minute), ttl: ttl}
}

func (l *MemoryLeaseLocker) TryAcquire(_ context.Context, key string) (bool, error) {
	// Add завершается ошибкой, если ключ уже занят и не истёк.
	if err := l.leases.Add(key, struct{}{}, l.ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (l *MemoryLeaseLocker) Release(_ context.Context, key string) error {
	l.leases.Delete(key)
	return nil
}
