package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"reservation-system/internal/dto"
)

var equipmentReportHeaders = []string{
	"ID", "Наименование", "Номер (external_id)", "Состояние", "Клиент", "Консультант",
	"Срок", "Срок изменён вручную", "Местонахождение", "Дата отгрузки", "Дата прибытия",
	"Дата растаможки", "Характеристики",
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func equipmentRow(item dto.EquipmentResponseDTO) []interface{} {
	modified := "нет"
	if item.DeadlineModified {
		modified = "да"
	}
	return []interface{}{
		item.ID, item.Name, deref(item.ExternalID), item.StateTitle, deref(item.Client), deref(item.Advisor),
		deref(item.DeadlineDate), modified, deref(item.MovementLocation), deref(item.ShipmentDate),
		deref(item.ArrivalDate), deref(item.NationalizationDate), deref(item.Specs),
	}
}

// buildEquipmentReport собирает книгу с одной строкой на единицу оборудования.
func buildEquipmentReport(data []dto.EquipmentResponseDTO) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Оборудование"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &equipmentReportHeaders); err != nil {
		return nil, err
	}
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheet, "A1", "M1", style)

	for i, item := range data {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := equipmentRow(item)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	f.SetColWidth(sheet, "B", "C", 25)
	f.SetColWidth(sheet, "D", "F", 20)
	f.SetColWidth(sheet, "I", "I", 25)
	f.SetColWidth(sheet, "M", "M", 50)
	return f, nil
}

func (c *EquipmentController) respondWithXLSX(ctx echo.Context, data []dto.EquipmentResponseDTO) error {
	f, err := buildEquipmentReport(data)
	if err != nil {
		return err
	}
	defer f.Close()

	fileName := fmt.Sprintf("equipment_%s.xlsx", time.Now().Format(time.DateOnly))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
