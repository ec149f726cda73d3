package seeders

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type seededUser struct {
	ID   uint64
	FIO  string
	Role string
}

// seedUsers создает пользователей, которых еще нет (по ФИО), и возвращает всех из набора.
func seedUsers(ctx context.Context, db *pgxpool.Pool) ([]seededUser, error) {
	log.Println("  - Наполнение таблицы 'users'...")

	out := make([]seededUser, 0, len(usersData))
	for _, u := range usersData {
		var id uint64
		err := db.QueryRow(ctx, "SELECT id FROM users WHERE fio = $1", u.FIO).Scan(&id)
		switch {
		case err == nil:
			log.Printf("    - Пользователь '%s' уже существует. Пропускаем.", u.FIO)
		case errors.Is(err, pgx.ErrNoRows):
			err = db.QueryRow(ctx, "INSERT INTO users (fio, role) VALUES ($1, $2) RETURNING id", u.FIO, u.Role).Scan(&id)
			if err != nil {
				return nil, fmt.Errorf("не удалось создать пользователя '%s': %w", u.FIO, err)
			}
		default:
			return nil, fmt.Errorf("ошибка при проверке существования пользователя: %w", err)
		}
		out = append(out, seededUser{ID: id, FIO: u.FIO, Role: u.Role})
	}
	return out, nil
}
