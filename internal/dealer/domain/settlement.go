package domain

import (
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SettlementInput carries the figures a settlement is computed from. All
// amounts are in currency except WithholdingPct, a percentage.
type SettlementInput struct {
	VolumeSold     decimal.Decimal
	MarginRate     decimal.Decimal
	OtherIncome    decimal.Decimal
	LoanDeduction  decimal.Decimal
	Shortage       decimal.Decimal
	Damage         decimal.Decimal
	Advance        decimal.Decimal
	Other          decimal.Decimal
	WithholdingPct decimal.Decimal
}

type SettlementAmounts struct {
	GrossMargin     decimal.Decimal `json:"gross_margin"`
	OtherIncome     decimal.Decimal `json:"other_income"`
	LoanDeduction   decimal.Decimal `json:"loan_deduction"`
	Shortage        decimal.Decimal `json:"shortage_deduction"`
	Damage          decimal.Decimal `json:"damage_deduction"`
	Advance         decimal.Decimal `json:"advance_deduction"`
	WithholdingTax  decimal.Decimal `json:"withholding_tax"`
	Other           decimal.Decimal `json:"other_deduction"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	NetPayable      decimal.Decimal `json:"net_payable"`
}

// ComputeSettlement nets gross margin plus other income against loan,
// shortage, damage, advance, withholding tax and ad-hoc deductions.
// Withholding applies to gross margin plus other income.
func ComputeSettlement(in SettlementInput) (SettlementAmounts, error) {
	for _, v := range []decimal.Decimal{
		in.VolumeSold, in.MarginRate, in.OtherIncome, in.LoanDeduction,
		in.Shortage, in.Damage, in.Advance, in.Other, in.WithholdingPct,
	} {
		if v.IsNegative() {
			return SettlementAmounts{}, ErrInvalidAmount
		}
	}

	out := SettlementAmounts{
		GrossMargin:   in.VolumeSold.Mul(in.MarginRate).Round(2),
		OtherIncome:   in.OtherIncome.Round(2),
		LoanDeduction: in.LoanDeduction.Round(2),
		Shortage:      in.Shortage.Round(2),
		Damage:        in.Damage.Round(2),
		Advance:       in.Advance.Round(2),
		Other:         in.Other.Round(2),
	}
	earned := out.GrossMargin.Add(out.OtherIncome)
	out.WithholdingTax = earned.Mul(in.WithholdingPct).Div(hundred).Round(2)
	out.TotalDeductions = decimal.Sum(out.LoanDeduction, out.Shortage, out.Damage, out.Advance, out.WithholdingTax, out.Other)
	out.NetPayable = earned.Sub(out.TotalDeductions).Round(2)
	if out.NetPayable.IsNegative() {
		return out, ErrNegativeNetPayable
	}
	return out, nil
}

// RequiresApproval reports whether a net payable above threshold must wait
// for a manual approval before posting.
func RequiresApproval(netPayable, threshold decimal.Decimal) bool {
	return netPayable.GreaterThan(threshold)
}

// SettlementNumber renders SETT-{dealer}-{window}-{unix seconds}, with the
// dealer reduced to a URL-safe slug.
func SettlementNumber(dealerID, windowID string, at time.Time) string {
	return fmt.Sprintf("SETT-%s-%s-%d", slug.Make(dealerID), windowID, at.Unix())
}
