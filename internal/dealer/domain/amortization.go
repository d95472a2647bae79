package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	monthsPerYear     = decimal.NewFromInt(12)
	fortnightsPerYear = decimal.NewFromInt(26)
)

// PeriodicRate converts an annual percentage into the rate per installment.
func PeriodicRate(annualRatePct decimal.Decimal, frequency Frequency) decimal.Decimal {
	annual := annualRatePct.Div(hundred)
	if frequency == FrequencyBiweekly {
		return annual.Div(fortnightsPerYear)
	}
	return annual.Div(monthsPerYear)
}

// GenerateAmortizationSchedule builds an equal-installment schedule. Each
// installment pays interest on the opening balance first; the last one
// absorbs rounding so the balance closes at exactly zero and the principal
// portions sum to the principal.
func GenerateAmortizationSchedule(principal, annualRatePct decimal.Decimal, periods int, frequency Frequency, start time.Time) ([]LoanInstallment, error) {
	if !principal.IsPositive() || annualRatePct.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if periods <= 0 {
		return nil, ErrInvalidTenor
	}
	if frequency != FrequencyMonthly && frequency != FrequencyBiweekly {
		return nil, ErrInvalidFrequency
	}

	principal = principal.Round(2)
	rate := PeriodicRate(annualRatePct, frequency)
	n := decimal.NewFromInt(int64(periods))

	var payment decimal.Decimal
	if rate.IsZero() {
		payment = principal.Div(n).Round(2)
	} else {
		growth := decimal.NewFromInt(1).Add(rate).Pow(n)
		payment = principal.Mul(rate).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1))).Round(2)
	}

	schedule := make([]LoanInstallment, 0, periods)
	balance := principal
	for i := 1; i <= periods; i++ {
		interest := balance.Mul(rate).Round(2)
		portion := payment.Sub(interest)
		if i == periods || portion.GreaterThan(balance) {
			portion = balance
		}
		if portion.IsNegative() {
			portion = decimal.Zero
		}
		balance = balance.Sub(portion)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		schedule = append(schedule, LoanInstallment{
			Number:           i,
			DueDate:          dueDate(start, frequency, i),
			Payment:          portion.Add(interest),
			PrincipalPortion: portion,
			InterestPortion:  interest,
			BalanceAfter:     balance,
			Status:           InstallmentDue,
		})
	}
	return schedule, nil
}

func dueDate(start time.Time, frequency Frequency, number int) time.Time {
	if frequency == FrequencyBiweekly {
		return start.AddDate(0, 0, 14*number)
	}
	return start.AddDate(0, number, 0)
}
