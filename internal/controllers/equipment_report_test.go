package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservation-system/internal/dto"
)

func TestBuildEquipmentReport(t *testing.T) {
	client := "ACME"
	deadline := "2025-03-18"
	f, err := buildEquipmentReport([]dto.EquipmentResponseDTO{
		{ID: 1, Name: "Экскаватор", State: "RESERVED", StateTitle: "зарезервировано", Client: &client, DeadlineDate: &deadline, DeadlineModified: true},
		{ID: 2, Name: "Погрузчик", State: "FREE", StateTitle: "свободно"},
	})
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Оборудование")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, equipmentReportHeaders, rows[0])
	assert.Equal(t, []string{"1", "Экскаватор", "", "зарезервировано", "ACME", "", "2025-03-18", "да"}, rows[1][:8])
	assert.Equal(t, "свободно", rows[2][3])
}
