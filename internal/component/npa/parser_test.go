package npa

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildTemplate(t *testing.T, effective string, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "Document"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "NPA/PBU/2026/09"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "Effective"))
	require.NoError(t, f.SetCellValue(sheet, "B2", effective))

	header := []string{"Code", "Name", "Category", "Unit", "Rate", "Product"}
	for i, value := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		require.NoError(t, f.SetCellValue(sheet, cell, value))
	}
	for r, row := range rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+5)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseTemplate(t *testing.T) {
	buf := buildTemplate(t, "2026-05-01", [][]string{
		{"EXREF", "Ex-Refinery", "Other", "Per Litre", "8.904", "PMS"},
		{"ESRL", "Energy Sector Recovery Levy", "Levy", "Per Litre", "0.20"},
		{"ROAD", "Road Fund", "Levy", "Per Litre", "0.48"},
		{},
		{"BOST", "BOST Margin", "Regulatory Margin", "Per Litre", "0.09"},
		{"UPPF", "UPPF Margin", "Regulatory Margin", "Per Litre", "0.10"},
		{"PSRL", "Price Stabilisation", "Levy", "%", "1.5", "all"},
	})

	doc, err := Parse(buf)
	require.NoError(t, err)

	assert.Equal(t, "NPA/PBU/2026/09", doc.DocumentReference)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), doc.EffectiveDate)
	require.Len(t, doc.Components, 6)

	exref := doc.Components[0]
	assert.Equal(t, "EXREF", exref.Code)
	assert.Equal(t, componentdomain.CategoryOther, exref.Category)
	require.NotNil(t, exref.ProductCode)
	assert.Equal(t, "PMS", *exref.ProductCode)
	assert.Equal(t, "8.904", exref.RateValue.String())

	assert.Equal(t, componentdomain.CategoryRegulatoryMargin, doc.Components[3].Category)

	psrl := doc.Components[5]
	assert.Equal(t, componentdomain.UnitPercentage, psrl.Unit)
	assert.Nil(t, psrl.ProductCode)
}

func TestParseRejectsBadRate(t *testing.T) {
	buf := buildTemplate(t, "01/05/2026", [][]string{
		{"ESRL", "Energy Sector Recovery Levy", "Levy", "Per Litre", "twenty"},
	})
	_, err := Parse(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRow)
	assert.Contains(t, err.Error(), fmt.Sprintf("row %d", 5))
}

func TestParseRejectsMissingDate(t *testing.T) {
	buf := buildTemplate(t, "", nil)
	_, err := Parse(buf)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}
