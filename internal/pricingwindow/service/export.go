package service

import (
	"bytes"
	"context"
	"fmt"

	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	"github.com/xuri/excelize/v2"
)

// ExportPriceSchedule renders the window's station prices as an XLSX
// workbook: a summary sheet and a prices sheet with one column per
// build-up component.
func (s *Service) ExportPriceSchedule(ctx context.Context, windowID string) ([]byte, error) {
	window, err := s.GetWindow(ctx, windowID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListStationPrices(ctx, s.db, window.OrgID, window.WindowID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", errEmptySchedule, window.WindowID)
	}
	return buildScheduleXLSX(window, rows)
}

func buildScheduleXLSX(window *windowdomain.PricingWindow, rows []windowdomain.StationPrice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	pricesSheet := "prices"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(pricesSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Price Schedule")
	_ = f.SetCellValue(summarySheet, "A3", "Window")
	_ = f.SetCellValue(summarySheet, "B3", window.WindowID)
	_ = f.SetCellValue(summarySheet, "A4", "Start")
	_ = f.SetCellValue(summarySheet, "B4", window.StartDate.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A5", "End")
	_ = f.SetCellValue(summarySheet, "B5", window.EndDate.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A6", "Status")
	_ = f.SetCellValue(summarySheet, "B6", string(window.Status))
	_ = f.SetCellValue(summarySheet, "A7", "Prices")
	_ = f.SetCellValue(summarySheet, "B7", len(rows))

	breakdowns := make([][]windowdomain.BreakdownLine, len(rows))
	var codes []string
	column := map[string]int{}
	for i, row := range rows {
		breakdowns[i] = decodeBreakdown(row.Breakdown)
		for _, line := range breakdowns[i] {
			if _, ok := column[line.Code]; !ok {
				column[line.Code] = 4 + len(codes)
				codes = append(codes, line.Code)
			}
		}
	}

	headers := append([]string{"Station", "Product", "Ex-Pump Price"}, codes...)
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(pricesSheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		_ = f.SetCellValue(pricesSheet, fmt.Sprintf("A%d", r), row.StationID)
		_ = f.SetCellValue(pricesSheet, fmt.Sprintf("B%d", r), row.ProductCode)
		_ = f.SetCellValue(pricesSheet, fmt.Sprintf("C%d", r), row.ExPumpPrice.InexactFloat64())
		for _, line := range breakdowns[i] {
			cell, err := excelize.CoordinatesToCellName(column[line.Code], r)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(pricesSheet, cell, line.Value.InexactFloat64())
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
