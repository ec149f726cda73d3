package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"reservation-system/internal/entities"
)

const purchaseRecordTable = "purchase_records"

const upsertChunkSize = 500

// reconcileQuery переносит данные закупок в каталог одним запросом:
// обновляет изменившиеся зеркальные поля и создает FREE-единицы для новых записей.
// Поля жизненного цикла (state, client, advisor, deadline) не затрагиваются.
const reconcileQuery = `
WITH upd AS (
	UPDATE equipments e SET
		name                 = p.name,
		movement_location    = p.movement_location,
		shipment_date        = p.shipment_date,
		arrival_date         = p.arrival_date,
		nationalization_date = p.nationalization_date,
		specs                = p.specs,
		updated_at           = NOW()
	FROM purchase_records p
	WHERE e.external_id = p.external_id
	  AND (e.name                 IS DISTINCT FROM p.name
	    OR e.movement_location    IS DISTINCT FROM p.movement_location
	    OR e.shipment_date        IS DISTINCT FROM p.shipment_date
	    OR e.arrival_date         IS DISTINCT FROM p.arrival_date
	    OR e.nationalization_date IS DISTINCT FROM p.nationalization_date
	    OR e.specs                IS DISTINCT FROM p.specs)
	RETURNING e.id
), ins AS (
	INSERT INTO equipments (name, external_id, state, movement_location, shipment_date, arrival_date, nationalization_date, specs)
	SELECT p.name, p.external_id, 'FREE', p.movement_location, p.shipment_date, p.arrival_date, p.nationalization_date, p.specs
	FROM purchase_records p
	WHERE NOT EXISTS (SELECT 1 FROM equipments e WHERE e.external_id = p.external_id)
	RETURNING id
)
SELECT (SELECT COUNT(*) FROM ins), (SELECT COUNT(*) FROM upd)`

type CatalogRepositoryInterface interface {
	UpsertPurchaseRecords(ctx context.Context, records []entities.PurchaseRecord) (int, error)
	ReconcileEquipments(ctx context.Context) (created, updated int, err error)
}

type catalogRepository struct {
	storage *pgxpool.Pool
}

func NewCatalogRepository(storage *pgxpool.Pool) CatalogRepositoryInterface {
	return &catalogRepository{storage: storage}
}

// UpsertPurchaseRecords загружает строки выгрузки закупок пачками по external_id.
func (r *catalogRepository) UpsertPurchaseRecords(ctx context.Context, records []entities.PurchaseRecord) (int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	total := 0
	for start := 0; start < len(records); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(records))

		builder := psql.Insert(purchaseRecordTable).
			Columns("external_id", "name", "movement_location", "shipment_date", "arrival_date", "nationalization_date", "specs")
		for _, p := range records[start:end] {
			builder = builder.Values(p.ExternalID, p.Name, p.MovementLocation, p.ShipmentDate, p.ArrivalDate, p.NationalizationDate, p.Specs)
		}
		query, args, err := builder.Suffix(`ON CONFLICT (external_id) DO UPDATE SET
			name = EXCLUDED.name,
			movement_location = EXCLUDED.movement_location,
			shipment_date = EXCLUDED.shipment_date,
			arrival_date = EXCLUDED.arrival_date,
			nationalization_date = EXCLUDED.nationalization_date,
			specs = EXCLUDED.specs,
			updated_at = NOW()`).ToSql()
		if err != nil {
			return total, fmt.Errorf("ошибка сборки запроса UpsertPurchaseRecords: %w", err)
		}
		tag, err := r.storage.Exec(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("ошибка загрузки записей закупок: %w", err)
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

func (r *catalogRepository) ReconcileEquipments(ctx context.Context) (int, int, error) {
	var created, updated int
	if err := r.storage.QueryRow(ctx, reconcileQuery).Scan(&created, &updated); err != nil {
		return 0, 0, fmt.Errorf("ошибка синхронизации каталога: %w", err)
	}
	return created, updated, nil
}
