package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"reservation-system/internal/entities"
	apperrors "reservation-system/pkg/errors"
)

const userTableRepo = "users"
const userSelectFieldsRepo = "id, fio, role, created_at, updated_at"

type UserRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error)
	FindByRoles(ctx context.Context, roles []string) ([]entities.User, error)
	Create(ctx context.Context, user *entities.User) (*entities.User, error)
}

type UserRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewUserRepository(storage *pgxpool.Pool, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

func (r *UserRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var user entities.User
	err := row.Scan(&user.ID, &user.Fio, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(userSelectFieldsRepo).From(userTableRepo).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса FindByID: %w", err)
	}
	return scanUser(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

// FindByRoles - получатели уведомлений для контролирующих ролей.
func (r *UserRepository) FindByRoles(ctx context.Context, roles []string) ([]entities.User, error) {
	if len(roles) == 0 {
		return []entities.User{}, nil
	}
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(userSelectFieldsRepo).
		From(userTableRepo).
		Where(sq.Eq{"role": roles}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса FindByRoles: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения FindByRoles: %w", err)
	}
	defer rows.Close()

	users := make([]entities.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			r.logger.Error("Ошибка сканирования пользователя", zap.Error(err))
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) (*entities.User, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(userTableRepo).
		Columns("fio", "role").
		Values(user.Fio, user.Role).
		Suffix("RETURNING " + userSelectFieldsRepo).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}
	return scanUser(r.storage.QueryRow(ctx, query, args...))
}
