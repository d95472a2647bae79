// Package npa reads the regulator's XLSX price build-up template.
package npa

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyWorkbook   = errors.New("npa_empty_workbook")
	ErrHeaderNotFound  = errors.New("npa_header_not_found")
	ErrInvalidMetadata = errors.New("npa_invalid_metadata")
	ErrInvalidRow      = errors.New("npa_invalid_row")
)

const (
	cellDocumentReference = "B1"
	cellEffectiveDate     = "B2"
)

var headerColumns = []string{"code", "name", "category", "unit", "rate"}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	time.RFC3339,
}

// Parse reads the first sheet. B1 holds the document reference, B2 the
// effective date, and the first row whose leading cells read
// Code | Name | Category | Unit | Rate starts the component table. An
// optional sixth Product column scopes a row to one product.
func Parse(r io.Reader) (componentdomain.ParsedDocument, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return componentdomain.ParsedDocument{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return componentdomain.ParsedDocument{}, ErrEmptyWorkbook
	}

	reference, err := f.GetCellValue(sheet, cellDocumentReference)
	if err != nil {
		return componentdomain.ParsedDocument{}, err
	}
	rawDate, err := f.GetCellValue(sheet, cellEffectiveDate)
	if err != nil {
		return componentdomain.ParsedDocument{}, err
	}
	effective, err := parseDate(rawDate)
	if err != nil {
		return componentdomain.ParsedDocument{}, fmt.Errorf("%w: effective date %q", ErrInvalidMetadata, rawDate)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return componentdomain.ParsedDocument{}, err
	}

	header := -1
	for i, row := range rows {
		if isHeader(row) {
			header = i
			break
		}
	}
	if header < 0 {
		return componentdomain.ParsedDocument{}, ErrHeaderNotFound
	}

	doc := componentdomain.ParsedDocument{
		DocumentReference: strings.TrimSpace(reference),
		EffectiveDate:     effective,
	}
	for i := header + 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		parsed, err := parseRow(row)
		if err != nil {
			return componentdomain.ParsedDocument{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		doc.Components = append(doc.Components, parsed)
	}
	return doc, nil
}

func parseRow(row []string) (componentdomain.ParsedComponent, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	code := strings.ToUpper(cell(0))
	if code == "" {
		return componentdomain.ParsedComponent{}, fmt.Errorf("%w: missing code", ErrInvalidRow)
	}
	category := componentdomain.Category(normalizeEnum(cell(2)))
	if !category.Valid() {
		return componentdomain.ParsedComponent{}, fmt.Errorf("%w: category %q", ErrInvalidRow, cell(2))
	}
	unit, err := parseUnit(cell(3))
	if err != nil {
		return componentdomain.ParsedComponent{}, err
	}
	rate, err := decimal.NewFromString(strings.ReplaceAll(cell(4), ",", ""))
	if err != nil {
		return componentdomain.ParsedComponent{}, fmt.Errorf("%w: rate %q", ErrInvalidRow, cell(4))
	}

	parsed := componentdomain.ParsedComponent{
		Code:      code,
		Name:      cell(1),
		Category:  category,
		Unit:      unit,
		RateValue: rate,
	}
	if product := strings.ToUpper(cell(5)); product != "" && product != "ALL" {
		parsed.ProductCode = &product
	}
	return parsed, nil
}

func parseUnit(raw string) (componentdomain.Unit, error) {
	switch normalizeEnum(raw) {
	case "PER_LITRE", "PER_LITER", "GHS/L", "LITRE":
		return componentdomain.UnitPerLitre, nil
	case "PERCENTAGE", "PERCENT", "%":
		return componentdomain.UnitPercentage, nil
	default:
		return "", fmt.Errorf("%w: unit %q", ErrInvalidRow, raw)
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidMetadata
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidMetadata
}

func isHeader(row []string) bool {
	if len(row) < len(headerColumns) {
		return false
	}
	for i, want := range headerColumns {
		if !strings.EqualFold(strings.TrimSpace(row[i]), want) {
			return false
		}
	}
	return true
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func normalizeEnum(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", "_"))
}
