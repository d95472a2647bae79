package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// RateSheet is a regulator publication normalised to product codes.
type RateSheet struct {
	Reference     string
	EffectiveDate time.Time
	Rates         map[string]decimal.Decimal
}

type RateChange struct {
	ProductCode string          `json:"product"`
	Old         decimal.Decimal `json:"old"`
	New         decimal.Decimal `json:"new"`
	Change      decimal.Decimal `json:"change"`
	ChangePct   decimal.Decimal `json:"changePct"`
	// Initial is set when the product had no previous rate.
	Initial bool `json:"initial,omitempty"`
}

type RateAlert struct {
	ProductCode string          `json:"product"`
	Severity    Severity        `json:"severity"`
	Change      decimal.Decimal `json:"change"`
	ChangePct   decimal.Decimal `json:"changePct"`
	Message     string          `json:"message"`
}

type AlertThresholds struct {
	LowPct           decimal.Decimal
	HighPct          decimal.Decimal
	CriticalPct      decimal.Decimal
	CriticalAbsolute decimal.Decimal
}

// ValidateRateSheet lists every problem with a sheet; an empty result means
// the sheet may be applied.
func ValidateRateSheet(sheet RateSheet, required []string) []string {
	var problems []string
	if sheet.EffectiveDate.IsZero() {
		problems = append(problems, "effective date is missing")
	}
	codes := make([]string, 0, len(sheet.Rates))
	for code := range sheet.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if sheet.Rates[code].IsNegative() {
			problems = append(problems, fmt.Sprintf("rate for %s is negative", code))
		}
	}
	for _, code := range required {
		if _, ok := sheet.Rates[strings.ToUpper(code)]; !ok {
			problems = append(problems, fmt.Sprintf("rate for %s is missing", code))
		}
	}
	return problems
}

func NewRateChange(product string, old *decimal.Decimal, next decimal.Decimal) RateChange {
	change := RateChange{ProductCode: product, New: next, ChangePct: decimal.Zero}
	if old == nil {
		change.Initial = true
		change.Change = next
		return change
	}
	change.Old = *old
	change.Change = next.Sub(*old)
	if !old.IsZero() {
		change.ChangePct = change.Change.Div(*old).Mul(hundred).Round(2)
	}
	return change
}

// ClassifyChange returns the alert for a change, or nil when it is below
// every threshold. Initial rates never alert.
func ClassifyChange(c RateChange, t AlertThresholds) *RateAlert {
	if c.Initial {
		return nil
	}
	pct := c.ChangePct.Abs()
	abs := c.Change.Abs()

	var severity Severity
	switch {
	case pct.GreaterThanOrEqual(t.CriticalPct):
		severity = SeverityCritical
	case t.CriticalAbsolute.IsPositive() && abs.GreaterThanOrEqual(t.CriticalAbsolute):
		severity = SeverityCritical
	case pct.GreaterThanOrEqual(t.HighPct):
		severity = SeverityHigh
	case pct.GreaterThanOrEqual(t.LowPct):
		severity = SeverityLow
	default:
		return nil
	}
	return &RateAlert{
		ProductCode: c.ProductCode,
		Severity:    severity,
		Change:      c.Change,
		ChangePct:   c.ChangePct,
		Message: fmt.Sprintf("UPPF rate for %s moved %s -> %s (%s%%)",
			c.ProductCode, c.Old.String(), c.New.String(), c.ChangePct.StringFixed(2)),
	}
}
