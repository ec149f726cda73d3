package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"reservation-system/internal/entities"
	apperrors "reservation-system/pkg/errors"
)

const (
	reservationTable         = "reservations"
	reservationFieldsAliased = `r.id, r.equipment_id, r.requester_id, r.status, r.deposit_confirmed, r.ten_percent_paid, r.documents_signed,
		r.first_checklist_date, r.approved_at, r.approved_by, r.rejected_at, r.rejected_by, r.rejection_reason,
		r.snapshot_client, r.snapshot_advisor, r.snapshot_deadline, r.created_at, r.updated_at`
)

type ReservationRepositoryInterface interface {
	Create(ctx context.Context, tx pgx.Tx, res *entities.Reservation) (uint64, error)
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Reservation, error)
	// ListActiveForUpdate блокирует и возвращает PENDING/APPROVED заявки единицы в порядке очереди.
	ListActiveForUpdate(ctx context.Context, tx pgx.Tx, equipmentID uint64) ([]*entities.Reservation, error)
	ListByEquipment(ctx context.Context, equipmentID uint64) ([]*entities.Reservation, error)
	Update(ctx context.Context, tx pgx.Tx, res *entities.Reservation) error
}

type reservationRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewReservationRepository(storage *pgxpool.Pool, logger *zap.Logger) ReservationRepositoryInterface {
	return &reservationRepository{storage: storage, logger: logger}
}

func (r *reservationRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func reservationDest(res *entities.Reservation) []any {
	return []any{
		&res.ID, &res.EquipmentID, &res.RequesterID, &res.Status,
		&res.DepositConfirmed, &res.TenPercentPaid, &res.DocumentsSigned, &res.FirstChecklistDate,
		&res.ApprovedAt, &res.ApprovedBy, &res.RejectedAt, &res.RejectedBy, &res.RejectionReason,
		&res.SnapshotClient, &res.SnapshotAdvisor, &res.SnapshotDeadline, &res.CreatedAt, &res.UpdatedAt,
	}
}

func scanReservation(row pgx.Row) (*entities.Reservation, error) {
	var res entities.Reservation
	if err := row.Scan(reservationDest(&res)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования reservations: %w", err)
	}
	return &res, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *reservationRepository) Create(ctx context.Context, tx pgx.Tx, res *entities.Reservation) (uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(reservationTable).
		Columns("equipment_id", "requester_id", "status",
			"snapshot_client", "snapshot_advisor", "snapshot_deadline").
		Values(res.EquipmentID, res.RequesterID, res.Status,
			res.SnapshotClient, res.SnapshotAdvisor, res.SnapshotDeadline).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return 0, fmt.Errorf("ошибка создания reservations: %w", err)
	}
	return res.ID, nil
}

func (r *reservationRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Reservation, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(reservationFieldsAliased).
		From(reservationTable + " r").
		Where(sq.Eq{"r.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса FindByID: %w", err)
	}
	return scanReservation(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *reservationRepository) ListActiveForUpdate(ctx context.Context, tx pgx.Tx, equipmentID uint64) ([]*entities.Reservation, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(reservationFieldsAliased).
		From(reservationTable+" r").
		Where(sq.Eq{
			"r.equipment_id": equipmentID,
			"r.status":       []entities.ReservationStatus{entities.ReservationPending, entities.ReservationApproved},
		}).
		OrderBy("r.created_at", "r.id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса ListActiveForUpdate: %w", err)
	}
	return r.queryList(ctx, tx, query, args)
}

func (r *reservationRepository) ListByEquipment(ctx context.Context, equipmentID uint64) ([]*entities.Reservation, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(reservationFieldsAliased).
		From(reservationTable+" r").
		Where(sq.Eq{"r.equipment_id": equipmentID}).
		OrderBy("r.created_at", "r.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса ListByEquipment: %w", err)
	}
	return r.queryList(ctx, nil, query, args)
}

func (r *reservationRepository) queryList(ctx context.Context, tx pgx.Tx, query string, args []interface{}) ([]*entities.Reservation, error) {
	rows, err := r.getQuerier(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса reservations: %w", err)
	}
	defer rows.Close()

	list := make([]*entities.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows reservations: %w", err)
	}
	return list, nil
}

func (r *reservationRepository) Update(ctx context.Context, tx pgx.Tx, res *entities.Reservation) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(reservationTable).
		Set("status", res.Status).
		Set("deposit_confirmed", res.DepositConfirmed).
		Set("ten_percent_paid", res.TenPercentPaid).
		Set("documents_signed", res.DocumentsSigned).
		Set("first_checklist_date", res.FirstChecklistDate).
		Set("approved_at", res.ApprovedAt).
		Set("approved_by", res.ApprovedBy).
		Set("rejected_at", res.RejectedAt).
		Set("rejected_by", res.RejectedBy).
		Set("rejection_reason", res.RejectionReason).
		Set("snapshot_client", res.SnapshotClient).
		Set("snapshot_advisor", res.SnapshotAdvisor).
		Set("snapshot_deadline", res.SnapshotDeadline).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": res.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Update: %w", err)
	}
	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("у оборудования уже есть одобренная заявка: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("ошибка обновления reservations: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
