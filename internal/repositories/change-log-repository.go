package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reservation-system/internal/entities"
)

const (
	changeLogTable  = "equipment_change_logs"
	changeLogFields = "id, equipment_id, field, old_value, new_value, reason, actor_id, created_at"
)

type ChangeLogRepositoryInterface interface {
	Append(ctx context.Context, tx pgx.Tx, entries ...entities.ChangeLogEntry) error
	ListByEquipment(ctx context.Context, equipmentID uint64) ([]entities.ChangeLogEntry, error)
}

type changeLogRepository struct {
	storage *pgxpool.Pool
}

func NewChangeLogRepository(storage *pgxpool.Pool) ChangeLogRepositoryInterface {
	return &changeLogRepository{storage: storage}
}

// Append пишет все записи одним INSERT в транзакции изменения.
func (r *changeLogRepository) Append(ctx context.Context, tx pgx.Tx, entries ...entities.ChangeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	builder := psql.Insert(changeLogTable).
		Columns("equipment_id", "field", "old_value", "new_value", "reason", "actor_id")
	for _, e := range entries {
		builder = builder.Values(e.EquipmentID, e.Field, e.OldValue, e.NewValue, e.Reason, e.ActorID)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Append: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка записи истории изменений: %w", err)
	}
	return nil
}

func (r *changeLogRepository) ListByEquipment(ctx context.Context, equipmentID uint64) ([]entities.ChangeLogEntry, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(changeLogFields).
		From(changeLogTable).
		Where(sq.Eq{"equipment_id": equipmentID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса ListByEquipment: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории изменений: %w", err)
	}
	defer rows.Close()

	list := make([]entities.ChangeLogEntry, 0)
	for rows.Next() {
		var e entities.ChangeLogEntry
		if err := rows.Scan(&e.ID, &e.EquipmentID, &e.Field, &e.OldValue, &e.NewValue, &e.Reason, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории изменений: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
