package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type Evaluation struct {
	DepotTransporterVariance   decimal.Decimal
	TransporterStationVariance decimal.Decimal
	DepotStationVariance       decimal.Decimal
	VariancePct                decimal.Decimal
	Status                     Status
}

// Evaluate compares the three measurements of one load. Variances are signed
// (first minus second); the match rule is |depot-station|/depot <= tolerance.
// A zero or negative depot volume never matches.
func Evaluate(depot, transporter, station, tolerancePct decimal.Decimal) Evaluation {
	out := Evaluation{
		DepotTransporterVariance:   depot.Sub(transporter),
		TransporterStationVariance: transporter.Sub(station),
		DepotStationVariance:       depot.Sub(station),
		Status:                     StatusVarianceDetected,
	}
	if !depot.IsPositive() {
		out.VariancePct = hundred
		return out
	}
	out.VariancePct = out.DepotStationVariance.Abs().Div(depot).Mul(hundred).Round(4)
	if out.VariancePct.LessThanOrEqual(tolerancePct) {
		out.Status = StatusMatched
	}
	return out
}
