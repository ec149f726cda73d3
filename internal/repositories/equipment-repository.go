package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"reservation-system/internal/entities"
	"reservation-system/internal/lifecycle"
	apperrors "reservation-system/pkg/errors"
	"reservation-system/pkg/types"
)

const (
	equipmentTable  = "equipments"
	equipmentFields = `e.id, e.name, e.external_id, e.state, e.client, e.advisor, e.deadline_date, e.deadline_modified,
		e.movement_location, e.shipment_date, e.arrival_date, e.nationalization_date, e.specs, e.created_at, e.updated_at`
)

// allowedEquipmentFilters - белый список фильтров
var allowedEquipmentFilters = map[string]string{
	"id":          "e.id",
	"state":       "e.state",
	"external_id": "e.external_id",
	"advisor":     "e.advisor",
}

var allowedEquipmentSortFields = map[string]string{
	"id":            "e.id",
	"name":          "e.name",
	"state":         "e.state",
	"deadline_date": "e.deadline_date",
	"created_at":    "e.created_at",
}

type EquipmentRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Equipment, error)
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Equipment, error)
	List(ctx context.Context, filter types.Filter) ([]*entities.Equipment, uint64, error)
	Create(ctx context.Context, tx pgx.Tx, e *entities.Equipment) (uint64, error)
	Update(ctx context.Context, tx pgx.Tx, e *entities.Equipment) error

	// ListHoldings возвращает единицы в состоянии state вместе с удерживающим
	// резервированием в статусе status (для RESERVED - голова очереди).
	ListHoldings(ctx context.Context, state lifecycle.State, status entities.ReservationStatus) ([]entities.Holding, error)
}

type equipmentRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewEquipmentRepository(storage *pgxpool.Pool, logger *zap.Logger) EquipmentRepositoryInterface {
	return &equipmentRepository{storage: storage, logger: logger}
}

func (r *equipmentRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func scanEquipment(row pgx.Row, extra ...any) (*entities.Equipment, error) {
	var e entities.Equipment
	dest := []any{
		&e.ID, &e.Name, &e.ExternalID, &e.State, &e.Client, &e.Advisor, &e.DeadlineDate, &e.DeadlineModified,
		&e.MovementLocation, &e.ShipmentDate, &e.ArrivalDate, &e.NationalizationDate, &e.Specs,
		&e.CreatedAt, &e.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования equipments: %w", err)
	}
	return &e, nil
}

func (r *equipmentRepository) findOne(ctx context.Context, q Querier, id uint64, suffix string) (*entities.Equipment, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	builder := psql.Select(equipmentFields).From(equipmentTable + " e").Where(sq.Eq{"e.id": id})
	if suffix != "" {
		builder = builder.Suffix(suffix)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для equipments: %w", err)
	}
	return scanEquipment(q.QueryRow(ctx, query, args...))
}

func (r *equipmentRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Equipment, error) {
	return r.findOne(ctx, r.getQuerier(tx), id, "")
}

// FindByIDForUpdate блокирует строку оборудования до конца транзакции.
func (r *equipmentRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Equipment, error) {
	return r.findOne(ctx, tx, id, "FOR UPDATE")
}

func (r *equipmentRepository) applyFilter(b sq.SelectBuilder, filter types.Filter) sq.SelectBuilder {
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		b = b.Where(sq.Or{
			sq.ILike{"e.name": like},
			sq.ILike{"e.client": like},
			sq.ILike{"e.external_id": like},
		})
	}
	for key, value := range filter.Filter {
		col, ok := allowedEquipmentFilters[key]
		if !ok {
			continue
		}
		if items, ok := value.(string); ok && strings.Contains(items, ",") {
			b = b.Where(sq.Eq{col: strings.Split(items, ",")})
		} else {
			b = b.Where(sq.Eq{col: value})
		}
	}
	return b
}

func (r *equipmentRepository) List(ctx context.Context, filter types.Filter) ([]*entities.Equipment, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	countQuery, countArgs, err := r.applyFilter(psql.Select("COUNT(e.id)").From(equipmentTable+" e"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL count: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения count: %w", err)
	}
	if total == 0 {
		return []*entities.Equipment{}, 0, nil
	}

	builder := r.applyFilter(psql.Select(equipmentFields).From(equipmentTable+" e"), filter)
	if len(filter.Sort) > 0 {
		for field, direction := range filter.Sort {
			if col, ok := allowedEquipmentSortFields[field]; ok {
				dir := "ASC"
				if strings.ToUpper(direction) == "DESC" {
					dir = "DESC"
				}
				builder = builder.OrderBy(col + " " + dir)
			}
		}
	} else {
		builder = builder.OrderBy("e.id DESC")
	}
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
		return nil, 0, fmt.Errorf("ошибка выполнения select: %w", err)
	}
	defer rows.Close()

	list := make([]*entities.Equipment, 0)
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			r.logger.Error("Ошибка сканирования equipment", zap.Error(err))
			return nil, 0, err
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации rows: %w", err)
	}
	return list, total, nil
}

func (r *equipmentRepository) Create(ctx context.Context, tx pgx.Tx, e *entities.Equipment) (uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(equipmentTable).
		Columns("name", "external_id", "state", "client", "advisor", "deadline_date", "deadline_modified",
			"movement_location", "shipment_date", "arrival_date", "nationalization_date", "specs").
		Values(e.Name, e.ExternalID, e.State, e.Client, e.Advisor, e.DeadlineDate, e.DeadlineModified,
			e.MovementLocation, e.ShipmentDate, e.ArrivalDate, e.NationalizationDate, e.Specs).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}
	var id uint64
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("оборудование с таким external_id уже существует: %w", apperrors.ErrConflict)
		}
		return 0, fmt.Errorf("ошибка создания equipments: %w", err)
	}
	e.ID = id
	return id, nil
}

// Update сохраняет изменяемые поля жизненного цикла.
func (r *equipmentRepository) Update(ctx context.Context, tx pgx.Tx, e *entities.Equipment) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(equipmentTable).
		Set("state", e.State).
		Set("client", e.Client).
		Set("advisor", e.Advisor).
		Set("deadline_date", e.DeadlineDate).
		Set("deadline_modified", e.DeadlineModified).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": e.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Update: %w", err)
	}
	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления equipments: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *equipmentRepository) ListHoldings(ctx context.Context, state lifecycle.State, status entities.ReservationStatus) ([]entities.Holding, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	builder := psql.Select(equipmentFields + ", " + reservationFieldsAliased).
		From(equipmentTable + " e").
		Join(reservationTable + " r ON r.equipment_id = e.id").
		Where(sq.Eq{"e.state": state, "r.status": status}).
		Where("e.deadline_date IS NOT NULL")
	if status == entities.ReservationPending {
		// Удерживает единицу только первая заявка в очереди.
		builder = builder.Options("DISTINCT ON (e.id)").OrderBy("e.id", "r.created_at", "r.id")
	} else {
		builder = builder.OrderBy("e.id")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса ListHoldings: %w", err)
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения ListHoldings: %w", err)
	}
	defer rows.Close()

	var out []entities.Holding
	for rows.Next() {
		var res entities.Reservation
		e, err := scanEquipment(rows, reservationDest(&res)...)
		if err != nil {
			return nil, err
		}
		out = append(out, entities.Holding{Equipment: *e, Reservation: res})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации rows в ListHoldings: %w", err)
	}
	return out, nil
}
