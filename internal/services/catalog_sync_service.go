package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"reservation-system/internal/dto"
	"reservation-system/internal/entities"
	"reservation-system/internal/repositories"
	apperrors "reservation-system/pkg/errors"
)

type CatalogSyncServiceInterface interface {
	// Reconcile переносит поля закупок в оборудование и создает недостающие единицы.
	Reconcile(ctx context.Context) (created, updated int, err error)
	// ImportWorkbook загружает выгрузку закупок (.xlsx) и сразу сверяет каталог.
	ImportWorkbook(ctx context.Context, r io.Reader) (*dto.CatalogImportResultDTO, error)
}

type CatalogSyncService struct {
	repo   repositories.CatalogRepositoryInterface
	loc    *time.Location
	logger *zap.Logger
}

func NewCatalogSyncService(repo repositories.CatalogRepositoryInterface, loc *time.Location, logger *zap.Logger) CatalogSyncServiceInterface {
	if loc == nil {
		loc = time.UTC
	}
	return &CatalogSyncService{repo: repo, loc: loc, logger: logger}
}

func (s *CatalogSyncService) Reconcile(ctx context.Context) (int, int, error) {
	created, updated, err := s.repo.ReconcileEquipments(ctx)
	if err != nil {
		s.logger.Error("Ошибка сверки каталога", zap.Error(err))
		return 0, 0, err
	}
	s.logger.Info("Каталог сверен", zap.Int("created", created), zap.Int("updated", updated))
	return created, updated, nil
}

func (s *CatalogSyncService) ImportWorkbook(ctx context.Context, r io.Reader) (*dto.CatalogImportResultDTO, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewHttpError(http.StatusBadRequest, "не удалось открыть файл выгрузки", err, nil)
	}
	defer f.Close()

	rows, header, err := findPurchaseSheet(f)
	if err != nil {
		return nil, err
	}

	records, skipped := s.parsePurchaseRows(rows, header)
	result := &dto.CatalogImportResultDTO{RowsRead: len(rows), Skipped: skipped}
	if len(records) == 0 {
		s.logger.Warn("В выгрузке нет ни одной записи закупки")
		return result, nil
	}

	upserted, err := s.repo.UpsertPurchaseRecords(ctx, records)
	if err != nil {
		return nil, err
	}
	result.Upserted = upserted

	result.Created, result.Updated, err = s.Reconcile(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Выгрузка закупок загружена",
		zap.Int("rows", result.RowsRead),
		zap.Int("skipped", result.Skipped),
		zap.Int("upserted", result.Upserted),
	)
	return result, nil
}

// Синонимы заголовков колонок (подстроки в нижнем регистре).
var headerAliases = map[string][]string{
	"external_id":          {"код", "артикул", "codigo", "código", "external", "sku"},
	"name":                 {"наименование", "модель", "descripcion", "descripción", "modelo", "name"},
	"movement_location":    {"местонахождение", "склад", "ubicacion", "ubicación", "location"},
	"shipment_date":        {"отгруз", "embarque", "shipment"},
	"arrival_date":         {"прибыт", "llegada", "arrival"},
	"nationalization_date": {"растамож", "nacionaliz", "customs"},
	"specs":                {"характеристик", "especificac", "specs"},
}

type purchaseHeader struct {
	row  int
	cols map[string]int
}

func (h purchaseHeader) col(field string) int {
	if idx, ok := h.cols[field]; ok {
		return idx
	}
	return -1
}

// findPurchaseSheet ищет лист и строку, где есть хотя бы код и наименование.
func findPurchaseSheet(f *excelize.File) ([][]string, purchaseHeader, error) {
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for rIdx, row := range rows {
			cols := matchHeader(row)
			_, hasID := cols["external_id"]
			_, hasName := cols["name"]
			if hasID && hasName {
				return rows, purchaseHeader{row: rIdx, cols: cols}, nil
			}
		}
	}
	return nil, purchaseHeader{}, apperrors.NewInvalidInputError("не найдена шапка таблицы: нужны колонки с кодом и наименованием")
}

func matchHeader(row []string) map[string]int {
	cols := make(map[string]int)
	for cIdx, cell := range row {
		c := strings.ToLower(strings.TrimSpace(cell))
		if c == "" {
			continue
		}
		for field, aliases := range headerAliases {
			if _, taken := cols[field]; taken {
				continue
			}
			for _, a := range aliases {
				if strings.Contains(c, a) {
					cols[field] = cIdx
					break
				}
			}
		}
	}
	return cols
}

// parsePurchaseRows разбирает строки под шапкой. Повторный код заменяет предыдущую строку.
func (s *CatalogSyncService) parsePurchaseRows(rows [][]string, h purchaseHeader) ([]entities.PurchaseRecord, int) {
	byID := make(map[string]int)
	var (
		records []entities.PurchaseRecord
		skipped int
	)
	for i := h.row + 1; i < len(rows); i++ {
		row := rows[i]
		externalID := safeGet(row, h.col("external_id"))
		name := safeGet(row, h.col("name"))
		if externalID == "" || name == "" || isTrashRow(externalID) || isTrashRow(name) {
			skipped++
			continue
		}

		rec := entities.PurchaseRecord{
			ExternalID:       externalID,
			Name:             name,
			MovementLocation: optionalCell(row, h.col("movement_location")),
			Specs:            optionalCell(row, h.col("specs")),
		}
		var err error
		if rec.ShipmentDate, err = s.parseCellDate(row, h.col("shipment_date")); err == nil {
			if rec.ArrivalDate, err = s.parseCellDate(row, h.col("arrival_date")); err == nil {
				rec.NationalizationDate, err = s.parseCellDate(row, h.col("nationalization_date"))
			}
		}
		if err != nil {
			s.logger.Warn("Строка выгрузки пропущена",
				zap.Int("line", i+1),
				zap.String("externalID", externalID),
				zap.Error(err),
			)
			skipped++
			continue
		}

		if idx, ok := byID[externalID]; ok {
			records[idx] = rec
			continue
		}
		byID[externalID] = len(records)
		records = append(records, rec)
	}
	return records, skipped
}

var cellDateLayouts = []string{
	time.DateOnly,
	"02.01.2006",
	"02/01/2006",
	"1/2/06",
	"2006/01/02",
}

func (s *CatalogSyncService) parseCellDate(row []string, idx int) (*time.Time, error) {
	raw := safeGet(row, idx)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range cellDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return &t, nil
		}
	}
	// Неформатированная ячейка даты приходит серийным номером Excel.
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("не удалось разобрать дату %q", raw)
}

func safeGet(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func optionalCell(row []string, idx int) *string {
	v := safeGet(row, idx)
	if v == "" {
		return nil
	}
	return &v
}

func isTrashRow(val string) bool {
	v := strings.ToLower(val)
	return strings.Contains(v, "итого") || strings.Contains(v, "всего") || strings.Contains(v, "total")
}
