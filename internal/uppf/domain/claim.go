package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ClaimNumber renders UPPF-{window}-{seq:04d}.
func ClaimNumber(windowID string, seq int64) string {
	return fmt.Sprintf("UPPF-%s-%04d", windowID, seq)
}

// KmBeyond is the distance past the equalisation point, floored at zero.
func KmBeyond(distance, threshold decimal.Decimal) decimal.Decimal {
	beyond := distance.Sub(threshold)
	if beyond.IsNegative() {
		return decimal.Zero
	}
	return beyond
}

// ClaimAmount is kmBeyond x litres x tariff, rounded to cents.
func ClaimAmount(kmBeyond, litres, tariff decimal.Decimal) decimal.Decimal {
	return kmBeyond.Mul(litres).Mul(tariff).Round(2)
}

var allowedClaimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimDraft:     {ClaimSubmitted},
	ClaimSubmitted: {ClaimApproved, ClaimRejected},
	ClaimApproved:  {ClaimSettled},
}

func CanTransition(from, to ClaimStatus) bool {
	for _, next := range allowedClaimTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
