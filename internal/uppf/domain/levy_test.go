package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultTable() LevyTable {
	return LevyTable{
		BaseRates:         map[string]decimal.Decimal{"PMS": d("0.12"), "AGO": d("0.12"), "KEROSENE": d("0.08"), "LPG": d("0.05")},
		RouteFactors:      map[string]decimal.Decimal{"HIGHWAY": d("1.00"), "URBAN": d("1.05"), "RURAL": d("1.15"), "REMOTE": d("1.30")},
		ProductFactors:    map[string]decimal.Decimal{"PMS": d("1.00"), "AGO": d("1.00"), "KEROSENE": d("0.95"), "LPG": d("0.90")},
		ClaimablePct:      map[string]decimal.Decimal{"PMS": d("100"), "AGO": d("100"), "KEROSENE": d("80"), "LPG": d("0")},
		SmallVolumeLitres: d("20000"),
		LargeVolumeLitres: d("50000"),
		SmallVolumeFactor: d("1.05"),
		LargeVolumeFactor: d("0.95"),
		MaxBonusPct:       d("5"),
	}
}

func TestCalculateLevy(t *testing.T) {
	tests := []struct {
		name          string
		in            LevyInput
		wantBonusPct  string
		wantTotal     string
		wantClaimable string
		wantNon       string
	}{
		{
			name:          "urban pms with bonus",
			in:            LevyInput{ProductCode: "pms", Litres: d("30000"), RouteType: "urban", Performance: Performance{OnTimeRate: d("0.96"), AccuracyRate: d("0.98")}},
			wantBonusPct:  "3.5",
			wantTotal:     "3912.3",
			wantClaimable: "3912.3",
			wantNon:       "0",
		},
		{
			name:          "small remote kerosene",
			in:            LevyInput{ProductCode: "KEROSENE", Litres: d("10000"), RouteType: "REMOTE", Performance: Performance{OnTimeRate: d("0.80"), AccuracyRate: d("0.80")}},
			wantBonusPct:  "0",
			wantTotal:     "1037.4",
			wantClaimable: "829.92",
			wantNon:       "207.48",
		},
		{
			name:          "large lpg bonus capped",
			in:            LevyInput{ProductCode: "LPG", Litres: d("60000"), RouteType: "HIGHWAY", Performance: Performance{OnTimeRate: d("1"), AccuracyRate: d("1")}},
			wantBonusPct:  "5",
			wantTotal:     "2693.25",
			wantClaimable: "0",
			wantNon:       "2693.25",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateLevy(tt.in, defaultTable())
			require.NoError(t, err)
			assert.True(t, got.BonusPct.Equal(d(tt.wantBonusPct)), "bonus %s", got.BonusPct)
			assert.True(t, got.Total.Equal(d(tt.wantTotal)), "total %s", got.Total)
			assert.True(t, got.Claimable.Equal(d(tt.wantClaimable)), "claimable %s", got.Claimable)
			assert.True(t, got.NonClaimable.Equal(d(tt.wantNon)), "non-claimable %s", got.NonClaimable)
			assert.True(t, got.Claimable.Add(got.NonClaimable).Equal(got.Total))
		})
	}
}

func TestCalculateLevyUnknownRouteUsesNeutralFactor(t *testing.T) {
	got, err := CalculateLevy(LevyInput{ProductCode: "AGO", Litres: d("30000"), RouteType: "OFFSHORE"}, defaultTable())
	require.NoError(t, err)
	assert.True(t, got.RouteFactor.Equal(d("1")))
	assert.True(t, got.Total.Equal(d("3600")))
}

func TestCalculateLevyRejectsBadInput(t *testing.T) {
	_, err := CalculateLevy(LevyInput{ProductCode: "JET", Litres: d("100")}, defaultTable())
	assert.ErrorIs(t, err, ErrUnknownProduct)

	_, err = CalculateLevy(LevyInput{ProductCode: "PMS", Litres: d("-1")}, defaultTable())
	assert.ErrorIs(t, err, ErrInvalidLitres)
}
