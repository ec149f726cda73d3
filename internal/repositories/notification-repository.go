package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"reservation-system/internal/entities"
	apperrors "reservation-system/pkg/errors"
	"reservation-system/pkg/types"
)

const (
	notificationTable  = "notifications"
	notificationFields = "id, recipient_id, type, title, message, reference_id, metadata, action_ref, is_read, created_at"
)

// NotificationSeenFilter - условия поиска ранее отправленного уведомления.
// Message и Since необязательны.
type NotificationSeenFilter struct {
	RecipientID uint64
	ReferenceID uint64
	Type        string
	Message     *string
	Since       *time.Time
}

type NotificationRepositoryInterface interface {
	CreateBatch(ctx context.Context, items []*entities.Notification) error
	Exists(ctx context.Context, filter NotificationSeenFilter) (bool, error)
	ListForRecipient(ctx context.Context, recipientID uint64, filter types.Filter) ([]entities.Notification, uint64, error)
	MarkRead(ctx context.Context, id, recipientID uint64) error
}

type notificationRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewNotificationRepository(storage *pgxpool.Pool, logger *zap.Logger) NotificationRepositoryInterface {
	return &notificationRepository{storage: storage, logger: logger}
}

// CreateBatch сохраняет уведомления и заполняет ID и CreatedAt.
func (r *notificationRepository) CreateBatch(ctx context.Context, items []*entities.Notification) error {
	if len(items) == 0 {
		return nil
	}
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	batch := &pgx.Batch{}
	for _, n := range items {
		var metadata []byte
		if len(n.Metadata) > 0 {
			b, err := json.Marshal(n.Metadata)
			if err != nil {
				return fmt.Errorf("не удалось сериализовать metadata: %w", err)
			}
			metadata = b
		}
		query, args, err := psql.Insert(notificationTable).
			Columns("recipient_id", "type", "title", "message", "reference_id", "metadata", "action_ref").
			Values(n.RecipientID, n.Type, n.Title, n.Message, n.ReferenceID, metadata, n.ActionRef).
			Suffix("RETURNING id, created_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("ошибка сборки запроса CreateBatch: %w", err)
		}
		batch.Queue(query, args...)
	}

	results := r.storage.SendBatch(ctx, batch)
	defer results.Close()
	for _, n := range items {
		if err := results.QueryRow().Scan(&n.ID, &n.CreatedAt); err != nil {
			return fmt.Errorf("ошибка сохранения уведомления: %w", err)
		}
	}
	return nil
}

func (r *notificationRepository) Exists(ctx context.Context, f NotificationSeenFilter) (bool, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	sub := psql.Select("1").From(notificationTable).Where(sq.Eq{
		"recipient_id": f.RecipientID,
		"reference_id": f.ReferenceID,
		"type":         f.Type,
	})
	if f.Message != nil {
		sub = sub.Where(sq.Eq{"message": *f.Message})
	}
	if f.Since != nil {
		sub = sub.Where(sq.GtOrEq{"created_at": *f.Since})
	}
	sql, args, err := sub.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("ошибка сборки запроса Exists: %w", err)
	}

	var exists bool
	if err := r.storage.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки уведомления: %w", err)
	}
	return exists, nil
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, recipientID uint64, filter types.Filter) ([]entities.Notification, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	where := sq.Eq{"recipient_id": recipientID}
	if v, ok := filter.Filter["is_read"]; ok {
		where["is_read"] = v == "true"
	}

	countQuery, countArgs, err := psql.Select("COUNT(id)").From(notificationTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL count: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения count: %w", err)
	}
	if total == 0 {
		return []entities.Notification{}, 0, nil
	}

	builder := psql.Select(notificationFields).From(notificationTable).Where(where).OrderBy("created_at DESC", "id DESC")
	if filter.WithPagination {
		if filter.Limit > 0 {
			builder = builder.Limit(uint64(filter.Limit))
		}
		if filter.Offset > 0 {
			builder = builder.Offset(uint64(filter.Offset))
		}
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL select: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения уведомлений: %w", err)
	}
	defer rows.Close()

	list := make([]entities.Notification, 0)
	for rows.Next() {
		var n entities.Notification
		var metadata []byte
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &n.ReferenceID,
			&metadata, &n.ActionRef, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования уведомления: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
				r.logger.Warn("Некорректный metadata у уведомления", zap.Uint64("id", n.ID), zap.Error(err))
			}
		}
		list = append(list, n)
	}
	return list, total, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID uint64) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(notificationTable).
		Set("is_read", true).
		Where(sq.Eq{"id": id, "recipient_id": recipientID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса MarkRead: %w", err)
	}
	result, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления уведомления: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
