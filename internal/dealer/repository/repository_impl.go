package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	dealerdomain "github.com/smallbiznis/petroprice/internal/dealer/domain"
	"gorm.io/gorm"
)

const settlementColumns = `id, org_id, settlement_number, dealer_id, window_id, volume_sold, margin_rate,
	gross_margin, other_income, loan_deduction, shortage_deduction, damage_deduction, advance_deduction,
	withholding_tax, other_deduction, total_deductions, net_payable, approval_status, payment_status,
	created_by, posted_by, posted_at, approved_by, approved_at, paid_at, payment_reference,
	journal_entry_number, created_at, updated_at`

const loanColumns = `id, org_id, dealer_id, principal, annual_rate_pct, tenor_periods, frequency,
	start_date, status, created_at, updated_at`

const installmentColumns = `id, org_id, loan_id, number, due_date, payment, principal_portion,
	interest_portion, balance_after, status, settlement_number, deducted_at`

type repo struct{}

func Provide() dealerdomain.Repository {
	return &repo{}
}

func (r *repo) InsertSettlement(ctx context.Context, db *gorm.DB, s *dealerdomain.DealerSettlement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO dealer_settlements (`+settlementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.OrgID,
		s.SettlementNumber,
		s.DealerID,
		s.WindowID,
		s.VolumeSold,
		s.MarginRate,
		s.GrossMargin,
		s.OtherIncome,
		s.LoanDeduction,
		s.ShortageDeduction,
		s.DamageDeduction,
		s.AdvanceDeduction,
		s.WithholdingTax,
		s.OtherDeduction,
		s.TotalDeductions,
		s.NetPayable,
		s.ApprovalStatus,
		s.PaymentStatus,
		s.CreatedBy,
		s.PostedBy,
		s.PostedAt,
		s.ApprovedBy,
		s.ApprovedAt,
		s.PaidAt,
		s.PaymentReference,
		s.JournalEntryNumber,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}

func (r *repo) FindSettlementByNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID, number string) (*dealerdomain.DealerSettlement, error) {
	return r.findSettlement(ctx, db, `org_id = ? AND settlement_number = ?`, orgID, number)
}

func (r *repo) FindSettlement(ctx context.Context, db *gorm.DB, orgID snowflake.ID, dealerID, windowID string) (*dealerdomain.DealerSettlement, error) {
	return r.findSettlement(ctx, db, `org_id = ? AND dealer_id = ? AND window_id = ?`, orgID, dealerID, windowID)
}

func (r *repo) findSettlement(ctx context.Context, db *gorm.DB, where string, args ...any) (*dealerdomain.DealerSettlement, error) {
	var item dealerdomain.DealerSettlement
	if err := db.WithContext(ctx).Raw(`SELECT `+settlementColumns+` FROM dealer_settlements WHERE `+where, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListSettlements(ctx context.Context, db *gorm.DB, filter dealerdomain.SettlementFilter) ([]dealerdomain.DealerSettlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM dealer_settlements WHERE org_id = ?`
	args := []any{filter.OrgID}
	if filter.DealerID != "" {
		query += ` AND dealer_id = ?`
		args = append(args, filter.DealerID)
	}
	if filter.WindowID != "" {
		query += ` AND window_id = ?`
		args = append(args, filter.WindowID)
	}
	if filter.ApprovalStatus != "" {
		query += ` AND approval_status = ?`
		args = append(args, filter.ApprovalStatus)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var items []dealerdomain.DealerSettlement
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkSettlementPosted only moves DRAFT rows.
func (r *repo) MarkSettlementPosted(ctx context.Context, db *gorm.DB, id snowflake.ID, approver string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE dealer_settlements
		 SET approval_status = ?, approved_by = ?, approved_at = ?, posted_by = ?, posted_at = ?, updated_at = ?
		 WHERE id = ? AND approval_status = ?`,
		dealerdomain.ApprovalPosted, approver, at, approver, at, at, id, dealerdomain.ApprovalDraft,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) MarkSettlementPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, reference string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE dealer_settlements
		 SET payment_status = ?, payment_reference = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND approval_status = ? AND payment_status = ?`,
		dealerdomain.PaymentPaid, reference, at, at, id, dealerdomain.ApprovalPosted, dealerdomain.PaymentUnpaid,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) SetSettlementJournal(ctx context.Context, db *gorm.DB, id snowflake.ID, entryNumber string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE dealer_settlements SET journal_entry_number = ? WHERE id = ?`,
		entryNumber, id,
	).Error
}

func (r *repo) CountSettlementsByStatus(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (map[dealerdomain.ApprovalStatus]int64, error) {
	var rows []struct {
		ApprovalStatus dealerdomain.ApprovalStatus
		Count          int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT approval_status, COUNT(1) AS count FROM dealer_settlements WHERE org_id = ? GROUP BY approval_status`,
		orgID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[dealerdomain.ApprovalStatus]int64, len(rows))
	for _, row := range rows {
		out[row.ApprovalStatus] = row.Count
	}
	return out, nil
}

func (r *repo) InsertLoan(ctx context.Context, db *gorm.DB, loan *dealerdomain.DealerLoan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO dealer_loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID,
		loan.OrgID,
		loan.DealerID,
		loan.Principal,
		loan.AnnualRatePct,
		loan.TenorPeriods,
		loan.Frequency,
		loan.StartDate,
		loan.Status,
		loan.CreatedAt,
		loan.UpdatedAt,
	).Error
}

func (r *repo) InsertInstallments(ctx context.Context, db *gorm.DB, items []dealerdomain.LoanInstallment) error {
	for i := range items {
		it := &items[i]
		err := db.WithContext(ctx).Exec(
			`INSERT INTO dealer_loan_installments (`+installmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID,
			it.OrgID,
			it.LoanID,
			it.Number,
			it.DueDate,
			it.Payment,
			it.PrincipalPortion,
			it.InterestPortion,
			it.BalanceAfter,
			it.Status,
			it.SettlementNumber,
			it.DeductedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindLoan(ctx context.Context, db *gorm.DB, orgID snowflake.ID, id snowflake.ID) (*dealerdomain.DealerLoan, error) {
	var item dealerdomain.DealerLoan
	err := db.WithContext(ctx).Raw(
		`SELECT `+loanColumns+` FROM dealer_loans WHERE org_id = ? AND id = ?`,
		orgID, id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListInstallments(ctx context.Context, db *gorm.DB, loanID snowflake.ID) ([]dealerdomain.LoanInstallment, error) {
	var items []dealerdomain.LoanInstallment
	err := db.WithContext(ctx).Raw(
		`SELECT `+installmentColumns+` FROM dealer_loan_installments WHERE loan_id = ? ORDER BY number ASC`,
		loanID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListDueInstallments returns DUE installments of the dealer's ACTIVE loans
// falling before dueBefore.
func (r *repo) ListDueInstallments(ctx context.Context, db *gorm.DB, orgID snowflake.ID, dealerID string, dueBefore time.Time) ([]dealerdomain.LoanInstallment, error) {
	var items []dealerdomain.LoanInstallment
	err := db.WithContext(ctx).Raw(
		`SELECT `+qualify("i", installmentColumns)+`
		 FROM dealer_loan_installments i
		 JOIN dealer_loans l ON l.id = i.loan_id
		 WHERE l.org_id = ? AND l.dealer_id = ? AND l.status = ? AND i.status = ? AND i.due_date < ?
		 ORDER BY i.due_date ASC, i.number ASC`,
		orgID, dealerID, dealerdomain.LoanActive, dealerdomain.InstallmentDue, dueBefore,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkInstallmentsDeducted(ctx context.Context, db *gorm.DB, ids []snowflake.ID, settlementNumber string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE dealer_loan_installments
		 SET status = ?, settlement_number = ?, deducted_at = ?
		 WHERE status = ? AND id IN ?`,
		dealerdomain.InstallmentDeducted, settlementNumber, at, dealerdomain.InstallmentDue, ids,
	)
	return res.RowsAffected, res.Error
}

// CloseRepaidLoans marks ACTIVE loans with no DUE installments left as REPAID.
func (r *repo) CloseRepaidLoans(ctx context.Context, db *gorm.DB, orgID snowflake.ID, dealerID string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE dealer_loans
		 SET status = ?, updated_at = ?
		 WHERE org_id = ? AND dealer_id = ? AND status = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM dealer_loan_installments i
		     WHERE i.loan_id = dealer_loans.id AND i.status = ?
		   )`,
		dealerdomain.LoanRepaid, at, orgID, dealerID, dealerdomain.LoanActive, dealerdomain.InstallmentDue,
	)
	return res.RowsAffected, res.Error
}

func qualify(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
