package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceTolerance is the largest debit/credit difference accepted.
var BalanceTolerance = decimal.RequireFromString("0.01")

// Amounts feeds Build. UPPF templates use Amount; the dealer template uses
// the settlement breakdown.
type Amounts struct {
	Amount decimal.Decimal

	GrossMargin     decimal.Decimal
	OtherIncome     decimal.Decimal
	NetPayable      decimal.Decimal
	WithholdingTax  decimal.Decimal
	LoanDeduction   decimal.Decimal
	OtherDeductions decimal.Decimal
}

func debit(account AccountCode, amount decimal.Decimal, description string) Line {
	return Line{AccountCode: account, Debit: amount, Description: description}
}

func credit(account AccountCode, amount decimal.Decimal, description string) Line {
	return Line{AccountCode: account, Credit: amount, Description: description}
}

// Build expands a template into posting lines. Zero-amount credit lines on
// the dealer template are omitted.
func Build(template TemplateCode, amounts Amounts) ([]Line, error) {
	switch template {
	case TemplateUPPFClaim:
		if !amounts.Amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		return []Line{
			debit(AccountUPPFReceivable, amounts.Amount, "UPPF claim receivable"),
			credit(AccountUPPFIncome, amounts.Amount, "UPPF income"),
		}, nil
	case TemplateUPPFSettlement:
		if !amounts.Amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		return []Line{
			debit(AccountCash, amounts.Amount, "UPPF settlement received"),
			credit(AccountUPPFReceivable, amounts.Amount, "UPPF receivable cleared"),
		}, nil
	case TemplateDealerSettlement:
		expense := amounts.GrossMargin.Add(amounts.OtherIncome)
		if !expense.IsPositive() {
			return nil, ErrInvalidAmount
		}
		lines := []Line{debit(AccountDealerMarginExpense, expense, "Dealer margin expense")}
		credits := []struct {
			account     AccountCode
			amount      decimal.Decimal
			description string
		}{
			{AccountDealerPayable, amounts.NetPayable, "Dealer net payable"},
			{AccountWHTPayable, amounts.WithholdingTax, "Withholding tax payable"},
			{AccountDealerLoanReceivable, amounts.LoanDeduction, "Dealer loan recovery"},
			{AccountDealerRecoveries, amounts.OtherDeductions, "Dealer recoveries"},
		}
		for _, c := range credits {
			if c.amount.IsNegative() {
				return nil, ErrInvalidAmount
			}
			if c.amount.IsZero() {
				continue
			}
			lines = append(lines, credit(c.account, c.amount, c.description))
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, template)
	}
}

// Totals sums both sides.
func Totals(lines []Line) (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	return debits, credits
}

// ValidateBalanced rejects malformed lines and any entry whose sides differ
// by more than BalanceTolerance.
func ValidateBalanced(lines []Line) error {
	if len(lines) < 2 {
		return ErrInvalidLines
	}
	for _, line := range lines {
		if line.AccountCode == "" {
			return ErrInvalidAccount
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return ErrInvalidAmount
		}
		hasDebit := !line.Debit.IsZero()
		hasCredit := !line.Credit.IsZero()
		if hasDebit == hasCredit {
			return fmt.Errorf("%w: account %s", ErrInvalidLineSide, line.AccountCode)
		}
	}
	debits, credits := Totals(lines)
	if debits.Sub(credits).Abs().GreaterThan(BalanceTolerance) {
		return fmt.Errorf("%w: debit %s credit %s", ErrUnbalanced, debits.String(), credits.String())
	}
	return nil
}
