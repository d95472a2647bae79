package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Performance struct {
	OnTimeRate   decimal.Decimal `json:"on_time_rate"`
	AccuracyRate decimal.Decimal `json:"accuracy_rate"`
}

type LevyInput struct {
	ProductCode string          `json:"product_code"`
	Litres      decimal.Decimal `json:"litres"`
	RouteType   string          `json:"route_type"`
	Performance Performance     `json:"performance"`
}

type LevyResult struct {
	ProductCode   string          `json:"product_code"`
	Base          decimal.Decimal `json:"base"`
	RouteFactor   decimal.Decimal `json:"route_factor"`
	ProductFactor decimal.Decimal `json:"product_factor"`
	VolumeFactor  decimal.Decimal `json:"volume_factor"`
	Adjusted      decimal.Decimal `json:"adjusted"`
	BonusPct      decimal.Decimal `json:"bonus_pct"`
	Bonus         decimal.Decimal `json:"bonus"`
	Total         decimal.Decimal `json:"total"`
	ClaimablePct  decimal.Decimal `json:"claimable_pct"`
	Claimable     decimal.Decimal `json:"claimable"`
	NonClaimable  decimal.Decimal `json:"non_claimable"`
}

// LevyTable holds the per-product rates and adjustment factors. Missing
// route or product factors count as 1; a missing claimable percentage
// counts as 0.
type LevyTable struct {
	BaseRates         map[string]decimal.Decimal
	RouteFactors      map[string]decimal.Decimal
	ProductFactors    map[string]decimal.Decimal
	ClaimablePct      map[string]decimal.Decimal
	SmallVolumeLitres decimal.Decimal
	LargeVolumeLitres decimal.Decimal
	SmallVolumeFactor decimal.Decimal
	LargeVolumeFactor decimal.Decimal
	MaxBonusPct       decimal.Decimal
}

var (
	hundred       = decimal.NewFromInt(100)
	bonusFloor    = decimal.RequireFromString("0.90")
	bonusSlope    = decimal.NewFromInt(50)
	two           = decimal.NewFromInt(2)
	defaultFactor = decimal.NewFromInt(1)
)

// CalculateLevy scales litres x base rate by route, product and volume
// factors, adds the compliance bonus and splits the total into claimable
// and non-claimable parts.
func CalculateLevy(in LevyInput, table LevyTable) (LevyResult, error) {
	product := strings.ToUpper(strings.TrimSpace(in.ProductCode))
	rate, ok := table.BaseRates[product]
	if !ok {
		return LevyResult{}, ErrUnknownProduct
	}
	if in.Litres.IsNegative() {
		return LevyResult{}, ErrInvalidLitres
	}

	out := LevyResult{
		ProductCode:   product,
		Base:          in.Litres.Mul(rate),
		RouteFactor:   factor(table.RouteFactors, strings.ToUpper(strings.TrimSpace(in.RouteType))),
		ProductFactor: factor(table.ProductFactors, product),
		VolumeFactor:  volumeFactor(in.Litres, table),
	}
	out.Adjusted = out.Base.Mul(out.RouteFactor).Mul(out.ProductFactor).Mul(out.VolumeFactor)
	out.BonusPct = complianceBonusPct(in.Performance, table.MaxBonusPct)
	out.Bonus = out.Adjusted.Mul(out.BonusPct).Div(hundred)
	out.Total = out.Adjusted.Add(out.Bonus).Round(2)

	out.ClaimablePct = table.ClaimablePct[product]
	out.Claimable = out.Total.Mul(out.ClaimablePct).Div(hundred).Round(2)
	out.NonClaimable = out.Total.Sub(out.Claimable)
	return out, nil
}

func factor(table map[string]decimal.Decimal, key string) decimal.Decimal {
	if f, ok := table[key]; ok {
		return f
	}
	return defaultFactor
}

func volumeFactor(litres decimal.Decimal, table LevyTable) decimal.Decimal {
	switch {
	case litres.LessThan(table.SmallVolumeLitres):
		return table.SmallVolumeFactor
	case litres.GreaterThanOrEqual(table.LargeVolumeLitres):
		return table.LargeVolumeFactor
	default:
		return defaultFactor
	}
}

// complianceBonusPct is ((onTime+accuracy)/2 - 0.90) x 50, clamped to [0, max].
func complianceBonusPct(p Performance, max decimal.Decimal) decimal.Decimal {
	pct := p.OnTimeRate.Add(p.AccuracyRate).Div(two).Sub(bonusFloor).Mul(bonusSlope)
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(max) {
		return max
	}
	return pct
}
