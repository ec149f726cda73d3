package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// seedEquipments добавляет свободные единицы. Существующие (по external_id) не трогаются.
func seedEquipments(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - Наполнение таблицы 'equipments'...")

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO equipments (name, external_id, state, movement_location, specs)
			  VALUES ($1, $2, 'FREE', $3, $4)
			  ON CONFLICT (external_id) DO NOTHING`

	for _, e := range equipmentsData {
		tag, err := tx.Exec(ctx, query, e.Name, e.ExternalID, e.MovementLocation, e.Specs)
		if err != nil {
			log.Printf("Ошибка при вставке оборудования '%s': %v", e.ExternalID, err)
			return err
		}
		if tag.RowsAffected() == 0 {
			log.Printf("    - Оборудование '%s' уже существует. Пропускаем.", e.ExternalID)
		}
	}

	return tx.Commit(ctx)
}
