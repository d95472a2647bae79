package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeSettlement(t *testing.T) {
	tests := []struct {
		name  string
		in    SettlementInput
		wht   string
		total string
		net   string
	}{
		{
			name:  "margin less loan and withholding",
			in:    SettlementInput{VolumeSold: d("30000"), MarginRate: d("0.35"), LoanDeduction: d("500"), WithholdingPct: d("7.5")},
			wht:   "787.50",
			total: "1287.50",
			net:   "9212.50",
		},
		{
			name: "other income is taxed",
			in: SettlementInput{
				VolumeSold: d("30000"), MarginRate: d("0.35"), OtherIncome: d("1000"),
				Shortage: d("200"), Damage: d("50"), Advance: d("1000"), Other: d("12.345"), WithholdingPct: d("7.5"),
			},
			wht:   "862.50",
			total: "2124.85",
			net:   "9375.15",
		},
		{
			name:  "no withholding",
			in:    SettlementInput{VolumeSold: d("1000"), MarginRate: d("0.35")},
			wht:   "0.00",
			total: "0.00",
			net:   "350.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeSettlement(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wht, got.WithholdingTax.StringFixed(2))
			assert.Equal(t, tt.total, got.TotalDeductions.StringFixed(2))
			assert.Equal(t, tt.net, got.NetPayable.StringFixed(2))
			assert.True(t, got.GrossMargin.Add(got.OtherIncome).Sub(got.TotalDeductions).Equal(got.NetPayable))
		})
	}
}

func TestComputeSettlementRejects(t *testing.T) {
	_, err := ComputeSettlement(SettlementInput{VolumeSold: d("100"), MarginRate: d("0.35"), LoanDeduction: d("500")})
	assert.ErrorIs(t, err, ErrNegativeNetPayable)

	_, err = ComputeSettlement(SettlementInput{VolumeSold: d("100"), MarginRate: d("0.35"), Damage: d("-1")})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRequiresApproval(t *testing.T) {
	threshold := d("10000")
	assert.False(t, RequiresApproval(d("9212.50"), threshold))
	assert.False(t, RequiresApproval(d("10000"), threshold))
	assert.True(t, RequiresApproval(d("10000.01"), threshold))
}

func TestSettlementNumber(t *testing.T) {
	at := time.Unix(1777885200, 0)
	assert.Equal(t, "SETT-d-9-2026-W08-1777885200", SettlementNumber("D-9", "2026-W08", at))
	assert.Equal(t, "SETT-accra-north-2-2026-W08-1777885200", SettlementNumber("Accra North #2", "2026-W08", at))
}
