package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestBuildDealerSettlementIsBalanced(t *testing.T) {
	lines, err := Build(TemplateDealerSettlement, Amounts{
		GrossMargin:    d("10500"),
		NetPayable:     d("9212.50"),
		WithholdingTax: d("787.50"),
		LoanDeduction:  d("500"),
	})
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Equal(t, AccountDealerMarginExpense, lines[0].AccountCode)
	assert.Equal(t, "10500", lines[0].Debit.String())
	require.NoError(t, ValidateBalanced(lines))
}

func TestBuildUPPFTemplates(t *testing.T) {
	lines, err := Build(TemplateUPPFSettlement, Amounts{Amount: d("900")})
	require.NoError(t, err)
	assert.Equal(t, AccountCash, lines[0].AccountCode)
	assert.Equal(t, AccountUPPFReceivable, lines[1].AccountCode)
	require.NoError(t, ValidateBalanced(lines))

	lines, err = Build(TemplateUPPFClaim, Amounts{Amount: d("900")})
	require.NoError(t, err)
	assert.Equal(t, AccountUPPFIncome, lines[1].AccountCode)

	_, err = Build(TemplateUPPFClaim, Amounts{})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Build("PAYROLL", Amounts{Amount: d("1")})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestValidateBalanced(t *testing.T) {
	tests := []struct {
		name    string
		lines   []Line
		wantErr error
	}{
		{
			name: "within tolerance",
			lines: []Line{
				{AccountCode: "1010", Debit: d("100.00")},
				{AccountCode: "1240", Credit: d("99.99")},
			},
		},
		{
			name: "mismatch",
			lines: []Line{
				{AccountCode: "1010", Debit: d("100.00")},
				{AccountCode: "1240", Credit: d("99.98")},
			},
			wantErr: ErrUnbalanced,
		},
		{
			name: "both sides on one line",
			lines: []Line{
				{AccountCode: "1010", Debit: d("100"), Credit: d("100")},
				{AccountCode: "1240", Credit: d("0")},
			},
			wantErr: ErrInvalidLineSide,
		},
		{
			name: "neither side",
			lines: []Line{
				{AccountCode: "1010", Debit: d("100")},
				{AccountCode: "1240"},
			},
			wantErr: ErrInvalidLineSide,
		},
		{
			name:    "single line",
			lines:   []Line{{AccountCode: "1010", Debit: d("1")}},
			wantErr: ErrInvalidLines,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBalanced(tt.lines)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
