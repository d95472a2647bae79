package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
	"gorm.io/gorm"
)

const claimColumns = `id, org_id, claim_number, consignment_id, route_id, window_id, product_code,
	km_beyond_equalisation, litres_moved, tariff_per_litre_km, claim_amount, status, three_way_reconciled,
	submission_reference, submitted_at, approved_amount, settlement_amount, variance_amount, rejection_reason,
	responded_at, settled_at, settlement_reference, journal_entry_number, created_at, updated_at`

const syncRunColumns = `id, org_id, effective_date, source, source_reference, changes, alerts, status,
	manual_intervention, error, created_at`

type repo struct{}

func Provide() uppfdomain.Repository {
	return &repo{}
}

func (r *repo) InsertClaim(ctx context.Context, db *gorm.DB, c *uppfdomain.UppfClaim) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO uppf_claims (`+claimColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.OrgID,
		c.ClaimNumber,
		c.ConsignmentID,
		c.RouteID,
		c.WindowID,
		c.ProductCode,
		c.KmBeyondEqualisation,
		c.LitresMoved,
		c.TariffPerLitreKm,
		c.ClaimAmount,
		c.Status,
		c.ThreeWayReconciled,
		c.SubmissionReference,
		c.SubmittedAt,
		c.ApprovedAmount,
		c.SettlementAmount,
		c.VarianceAmount,
		c.RejectionReason,
		c.RespondedAt,
		c.SettledAt,
		c.SettlementReference,
		c.JournalEntryNumber,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) FindClaimByNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID, claimNumber string) (*uppfdomain.UppfClaim, error) {
	return r.findClaim(ctx, db, `org_id = ? AND claim_number = ?`, orgID, claimNumber)
}

func (r *repo) FindClaimByConsignment(ctx context.Context, db *gorm.DB, orgID snowflake.ID, consignmentID string) (*uppfdomain.UppfClaim, error) {
	return r.findClaim(ctx, db, `org_id = ? AND consignment_id = ?`, orgID, consignmentID)
}

func (r *repo) findClaim(ctx context.Context, db *gorm.DB, where string, args ...any) (*uppfdomain.UppfClaim, error) {
	var item uppfdomain.UppfClaim
	if err := db.WithContext(ctx).Raw(`SELECT `+claimColumns+` FROM uppf_claims WHERE `+where, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) CountClaimsInWindow(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM uppf_claims WHERE org_id = ? AND window_id = ?`,
		orgID, windowID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ListClaims(ctx context.Context, db *gorm.DB, filter uppfdomain.ClaimFilter) ([]uppfdomain.UppfClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM uppf_claims WHERE org_id = ?`
	args := []any{filter.OrgID}
	if filter.WindowID != "" {
		query += ` AND window_id = ?`
		args = append(args, filter.WindowID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY claim_number ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var items []uppfdomain.UppfClaim
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkSubmitted only moves DRAFT rows.
func (r *repo) MarkSubmitted(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, reference string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE uppf_claims
		 SET status = ?, submission_reference = ?, submitted_at = ?, updated_at = ?
		 WHERE org_id = ? AND status = ? AND id IN ?`,
		uppfdomain.ClaimSubmitted, reference, at, at, orgID, uppfdomain.ClaimDraft, ids,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkApproved(ctx context.Context, db *gorm.DB, id snowflake.ID, approved, variance decimal.Decimal, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE uppf_claims
		 SET status = ?, approved_amount = ?, variance_amount = ?, responded_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		uppfdomain.ClaimApproved, approved, variance, at, at, id, uppfdomain.ClaimSubmitted,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) MarkRejected(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, variance decimal.Decimal, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE uppf_claims
		 SET status = ?, rejection_reason = ?, variance_amount = ?, responded_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		uppfdomain.ClaimRejected, reason, variance, at, at, id, uppfdomain.ClaimSubmitted,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) MarkSettled(ctx context.Context, db *gorm.DB, id snowflake.ID, settled, variance decimal.Decimal, reference string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE uppf_claims
		 SET status = ?, settlement_amount = ?, variance_amount = ?, settlement_reference = ?, settled_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		uppfdomain.ClaimSettled, settled, variance, reference, at, at, id, uppfdomain.ClaimApproved,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) SetJournalEntry(ctx context.Context, db *gorm.DB, id snowflake.ID, entryNumber string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE uppf_claims SET journal_entry_number = ? WHERE id = ?`,
		entryNumber, id,
	).Error
}

func (r *repo) CountClaimsByStatus(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (map[uppfdomain.ClaimStatus]int64, error) {
	var rows []struct {
		Status uppfdomain.ClaimStatus
		Count  int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(1) AS count FROM uppf_claims WHERE org_id = ? GROUP BY status`,
		orgID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uppfdomain.ClaimStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *repo) InsertSyncRun(ctx context.Context, db *gorm.DB, run *uppfdomain.RateSyncRun) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO uppf_rate_sync_runs (`+syncRunColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.OrgID,
		run.EffectiveDate,
		run.Source,
		run.SourceReference,
		run.Changes,
		run.Alerts,
		run.Status,
		run.ManualIntervention,
		run.Error,
		run.CreatedAt,
	).Error
}

func (r *repo) LatestSyncRun(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*uppfdomain.RateSyncRun, error) {
	var item uppfdomain.RateSyncRun
	err := db.WithContext(ctx).Raw(
		`SELECT `+syncRunColumns+` FROM uppf_rate_sync_runs WHERE org_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		orgID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
