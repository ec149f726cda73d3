package locker

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PgAdvisoryLocker использует сессионные advisory-блокировки PostgreSQL.
// Блокировка живёт, пока открыто соединение, поэтому под каждый ключ
// из пула берётся отдельное соединение и возвращается при Release.
// При падении процесса PostgreSQL снимает блокировку сам.
type PgAdvisoryLocker struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu    sync.Mutex
	conns map[string]*pgxpool.Conn
}

func NewPgAdvisoryLocker(pool *pgxpool.Pool, logger *zap.Logger) *PgAdvisoryLocker {
	return &PgAdvisoryLocker{pool: pool, logger: logger, conns: make(map[string]*pgxpool.Conn)}
}

func (l *PgAdvisoryLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.conns[key]; held {
		return false, nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("не удалось получить соединение для блокировки: %w", err)
	}

	var acquired bool
	err = conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&acquired)
	if err != nil {
		conn.Release()
		return false, fmt.Errorf("ошибка pg_try_advisory_lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	l.conns[key] = conn
	l.logger.Debug("Advisory-блокировка получена", zap.String("key", key))
	return true, nil
}

func (l *PgAdvisoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	conn, ok := l.conns[key]
	delete(l.conns, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	var released bool
	err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key).Scan(&released)
	if err != nil {
		// Соединение с неизвестным состоянием блокировки в пул не возвращаем.
		_ = conn.Conn().Close(ctx)
		conn.Release()
		return fmt.Errorf("ошибка pg_advisory_unlock: %w", err)
	}
	conn.Release()

	if !released {
		l.logger.Warn("Advisory-блокировка уже была снята", zap.String("key", key))
	}
	return nil
}
