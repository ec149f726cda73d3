package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	apperrors "reservation-system/pkg/errors"
)

// Коды SQLSTATE, означающие конфликт с параллельной транзакцией.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

type TxManagerInterface interface {
	RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type TxManager struct {
	pool    *pgxpool.Pool
	logger  *zap.Logger
	retries uint64
}

func NewTxManager(pool *pgxpool.Pool, logger *zap.Logger) TxManagerInterface {
	return &TxManager{pool: pool, logger: logger, retries: 3}
}

// RunInTransaction выполняет fn в одной транзакции.
// Если соединение оборвалось до отправки данных, вся транзакция повторяется
// с экспоненциальной задержкой. Конфликты блокировок возвращаются как ConcurrencyError.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	backoff := retry.WithMaxRetries(m.retries, retry.NewExponential(50*time.Millisecond))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := m.runOnce(ctx, fn)
		if err != nil && pgconn.SafeToRetry(err) {
			m.logger.Warn("Транзакция не началась из-за ошибки соединения, повтор",
				zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	return mapConcurrency(err)
}

func (m *TxManager) runOnce(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
			if err != nil {
				err = fmt.Errorf("ошибка при коммите транзакции: %w", err)
			}
		}
	}()

	err = fn(tx)
	return err
}

func mapConcurrency(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return &apperrors.ConcurrencyError{Err: err}
		}
	}
	return err
}
