package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"gorm.io/gorm"
)

const componentColumns = `id, org_id, code, name, category, unit, rate_value, product_code,
	effective_from, effective_to, is_active, source_document_id, approval_reference, created_at`

type repo struct{}

func Provide() componentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *componentdomain.PricingComponent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pricing_components (
			id, org_id, code, name, category, unit, rate_value, product_code,
			effective_from, effective_to, is_active, source_document_id, approval_reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.OrgID,
		c.Code,
		c.Name,
		c.Category,
		c.Unit,
		c.RateValue,
		c.ProductCode,
		c.EffectiveFrom,
		c.EffectiveTo,
		c.IsActive,
		c.SourceDocumentID,
		c.ApprovalReference,
		c.CreatedAt,
	).Error
}

// Close ends the validity interval of a row. Rates are never rewritten.
func (r *repo) Close(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, effectiveTo time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_components SET effective_to = ? WHERE org_id = ? AND id = ?`,
		effectiveTo, orgID, id,
	).Error
}

func (r *repo) ListActiveAt(ctx context.Context, db *gorm.DB, orgID snowflake.ID, asOf time.Time) ([]componentdomain.PricingComponent, error) {
	var items []componentdomain.PricingComponent
	err := db.WithContext(ctx).Raw(
		`SELECT `+componentColumns+`
		 FROM pricing_components
		 WHERE org_id = ?
		   AND is_active = ?
		   AND effective_from <= ?
		   AND (effective_to IS NULL OR effective_to > ?)
		 ORDER BY code ASC, effective_from DESC`,
		orgID, true, asOf, asOf,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindCurrent(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string, productCode *string) (*componentdomain.PricingComponent, error) {
	var item componentdomain.PricingComponent
	query := `SELECT ` + componentColumns + `
		FROM pricing_components
		WHERE org_id = ? AND code = ? AND is_active = ? AND effective_to IS NULL`
	args := []any{orgID, code, true}
	if productCode == nil || *productCode == "" {
		query += ` AND product_code IS NULL`
	} else {
		query += ` AND product_code = ?`
		args = append(args, *productCode)
	}
	query += ` ORDER BY effective_from DESC LIMIT 1`

	if err := db.WithContext(ctx).Raw(query, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) ([]componentdomain.PricingComponent, error) {
	var items []componentdomain.PricingComponent
	err := db.WithContext(ctx).Raw(
		`SELECT `+componentColumns+`
		 FROM pricing_components
		 WHERE org_id = ? AND code = ?
		 ORDER BY product_code ASC, effective_from ASC`,
		orgID, code,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindWindowStart(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string) (*time.Time, error) {
	var row struct {
		StartDate time.Time
	}
	err := db.WithContext(ctx).Raw(
		`SELECT start_date FROM pricing_windows WHERE org_id = ? AND window_id = ?`,
		orgID, windowID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.StartDate.IsZero() {
		return nil, nil
	}
	return &row.StartDate, nil
}
