package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	"gorm.io/gorm"
)

const windowColumns = `id, org_id, window_id, window_number, year, start_date, end_date, submission_deadline,
	status, approval_status, published_at, closed_at, archived_at, created_at, updated_at`

const priceColumns = `id, org_id, station_id, product_code, window_id, ex_pump_price, breakdown,
	source_documents, published_at, delivery_status, delivery_error, created_at`

type repo struct{}

func Provide() windowdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, w *windowdomain.PricingWindow) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pricing_windows (
			id, org_id, window_id, window_number, year, start_date, end_date, submission_deadline,
			status, approval_status, published_at, closed_at, archived_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID,
		w.OrgID,
		w.WindowID,
		w.WindowNumber,
		w.Year,
		w.StartDate,
		w.EndDate,
		w.SubmissionDeadline,
		w.Status,
		w.ApprovalStatus,
		w.PublishedAt,
		w.ClosedAt,
		w.ArchivedAt,
		w.CreatedAt,
		w.UpdatedAt,
	).Error
}

func (r *repo) FindByWindowID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string) (*windowdomain.PricingWindow, error) {
	return r.findOne(ctx, db, `org_id = ? AND window_id = ?`, orgID, windowID)
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID, year, number int) (*windowdomain.PricingWindow, error) {
	return r.findOne(ctx, db, `org_id = ? AND year = ? AND window_number = ?`, orgID, year, number)
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*windowdomain.PricingWindow, error) {
	return r.findOne(ctx, db, `org_id = ? AND status = ?`, orgID, windowdomain.StatusActive)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*windowdomain.PricingWindow, error) {
	var item windowdomain.PricingWindow
	err := db.WithContext(ctx).Raw(
		`SELECT `+windowColumns+` FROM pricing_windows WHERE `+where+` ORDER BY start_date DESC LIMIT 1`,
		args...,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// FindOverlapping returns windows intersecting [start, end], both ends inclusive.
func (r *repo) FindOverlapping(ctx context.Context, db *gorm.DB, orgID snowflake.ID, start, end time.Time) ([]windowdomain.PricingWindow, error) {
	var items []windowdomain.PricingWindow
	err := db.WithContext(ctx).Raw(
		`SELECT `+windowColumns+`
		 FROM pricing_windows
		 WHERE org_id = ? AND start_date <= ? AND end_date >= ?
		 ORDER BY start_date ASC`,
		orgID, end, start,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter windowdomain.ListFilter) ([]windowdomain.PricingWindow, error) {
	query := `SELECT ` + windowColumns + ` FROM pricing_windows WHERE org_id = ?`
	args := []any{filter.OrgID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Year > 0 {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	query += ` ORDER BY start_date DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var items []windowdomain.PricingWindow
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateStatus moves a window only when it is still in from. It reports
// whether a row changed.
func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string, from, to windowdomain.Status, at time.Time) (bool, error) {
	set := `status = ?, updated_at = ?`
	switch to {
	case windowdomain.StatusClosed:
		set += `, closed_at = ?`
	case windowdomain.StatusArchived:
		set += `, archived_at = ?`
	case windowdomain.StatusActive:
		set += `, published_at = COALESCE(published_at, ?)`
	}
	args := []any{to, at}
	if to != windowdomain.StatusDraft {
		args = append(args, at)
	}
	args = append(args, orgID, windowID, from)

	res := db.WithContext(ctx).Exec(
		`UPDATE pricing_windows SET `+set+` WHERE org_id = ? AND window_id = ? AND status = ?`,
		args...,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkPublished stamps published_at without touching status; activation
// goes through UpdateStatus.
func (r *repo) MarkPublished(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_windows
		 SET published_at = ?, updated_at = ?
		 WHERE org_id = ? AND window_id = ? AND status IN (?, ?)`,
		at, at, orgID, windowID, windowdomain.StatusDraft, windowdomain.StatusActive,
	).Error
}

// ClampAndClose ends a superseded window the day before its successor
// starts. An ACTIVE window is closed as well; other statuses keep theirs.
func (r *repo) ClampAndClose(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string, endDate, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_windows
		 SET end_date = ?,
		     submission_deadline = CASE WHEN submission_deadline > ? THEN ? ELSE submission_deadline END,
		     closed_at = CASE WHEN status = ? THEN ? ELSE closed_at END,
		     status = CASE WHEN status = ? THEN ? ELSE status END,
		     updated_at = ?
		 WHERE org_id = ? AND window_id = ?`,
		endDate,
		endDate, endDate,
		windowdomain.StatusActive, at,
		windowdomain.StatusActive, windowdomain.StatusClosed,
		at,
		orgID, windowID,
	).Error
}

func (r *repo) CloseExpired(ctx context.Context, db *gorm.DB, orgID snowflake.ID, before, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE pricing_windows
		 SET status = ?, closed_at = ?, updated_at = ?
		 WHERE org_id = ? AND status = ? AND end_date < ?`,
		windowdomain.StatusClosed, at, at, orgID, windowdomain.StatusActive, before,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListPastDeadline(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time) ([]windowdomain.PricingWindow, error) {
	var items []windowdomain.PricingWindow
	err := db.WithContext(ctx).Raw(
		`SELECT `+windowColumns+`
		 FROM pricing_windows
		 WHERE org_id = ? AND status = ? AND submission_deadline IS NOT NULL AND submission_deadline < ?
		 ORDER BY start_date ASC`,
		orgID, windowdomain.StatusActive, now,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ArchiveBefore(ctx context.Context, db *gorm.DB, orgID snowflake.ID, cutoff, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE pricing_windows
		 SET status = ?, archived_at = ?, updated_at = ?
		 WHERE org_id = ? AND status = ? AND end_date < ?`,
		windowdomain.StatusArchived, at, at, orgID, windowdomain.StatusClosed, cutoff,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) FindStationPrice(ctx context.Context, db *gorm.DB, orgID snowflake.ID, stationID, productCode, windowID string) (*windowdomain.StationPrice, error) {
	var item windowdomain.StationPrice
	err := db.WithContext(ctx).Raw(
		`SELECT `+priceColumns+`
		 FROM station_prices
		 WHERE org_id = ? AND station_id = ? AND product_code = ? AND window_id = ?
		 LIMIT 1`,
		orgID, stationID, productCode, windowID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertStationPrice(ctx context.Context, db *gorm.DB, p *windowdomain.StationPrice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO station_prices (
			id, org_id, station_id, product_code, window_id, ex_pump_price, breakdown,
			source_documents, published_at, delivery_status, delivery_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.OrgID,
		p.StationID,
		p.ProductCode,
		p.WindowID,
		p.ExPumpPrice,
		p.Breakdown,
		p.SourceDocuments,
		p.PublishedAt,
		p.DeliveryStatus,
		p.DeliveryError,
		p.CreatedAt,
	).Error
}

func (r *repo) UpdateDelivery(ctx context.Context, db *gorm.DB, id snowflake.ID, status windowdomain.DeliveryStatus, deliveryError *string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE station_prices SET delivery_status = ?, delivery_error = ? WHERE id = ?`,
		status, deliveryError, id,
	).Error
}

func (r *repo) ListStationPrices(ctx context.Context, db *gorm.DB, orgID snowflake.ID, windowID string) ([]windowdomain.StationPrice, error) {
	var items []windowdomain.StationPrice
	err := db.WithContext(ctx).Raw(
		`SELECT `+priceColumns+`
		 FROM station_prices
		 WHERE org_id = ? AND window_id = ?
		 ORDER BY station_id ASC, product_code ASC`,
		orgID, windowID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
