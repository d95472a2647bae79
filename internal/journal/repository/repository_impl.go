package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	journaldomain "github.com/smallbiznis/petroprice/internal/journal/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() journaldomain.Repository {
	return &repo{}
}

const journalColumns = `id, org_id, entry_number, template_code, source_document, source_document_id,
	description, reference, lines, total_debit, total_credit, effective_date, created_by,
	status, external_entry_id, last_error, attempts, created_at, updated_at`

// InsertIfAbsent reports false when a request for the same source and
// template already exists.
func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, req *journaldomain.JournalRequest) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO journal_requests (`+journalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, source_document, source_document_id, template_code) DO NOTHING`,
		req.ID,
		req.OrgID,
		req.EntryNumber,
		req.TemplateCode,
		req.SourceDocument,
		req.SourceDocumentID,
		req.Description,
		req.Reference,
		req.Lines,
		req.TotalDebit,
		req.TotalCredit,
		req.EffectiveDate,
		req.CreatedBy,
		req.Status,
		req.ExternalEntryID,
		req.LastError,
		req.Attempts,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindBySource(ctx context.Context, db *gorm.DB, orgID snowflake.ID, sourceDocument, sourceDocumentID string, template journaldomain.TemplateCode) (*journaldomain.JournalRequest, error) {
	var item journaldomain.JournalRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+journalColumns+`
		 FROM journal_requests
		 WHERE org_id = ? AND source_document = ? AND source_document_id = ? AND template_code = ?`,
		orgID, sourceDocument, sourceDocumentID, template,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByEntryNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID, entryNumber string) (*journaldomain.JournalRequest, error) {
	var item journaldomain.JournalRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+journalColumns+` FROM journal_requests WHERE org_id = ? AND entry_number = ?`,
		orgID, entryNumber,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) CountByEntryPrefix(ctx context.Context, db *gorm.DB, orgID snowflake.ID, prefix string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM journal_requests WHERE org_id = ? AND entry_number LIKE ?`,
		orgID, prefix+"%",
	).Scan(&count).Error
	return count, err
}

func (r *repo) MarkPosted(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE journal_requests
		 SET status = ?, external_entry_id = ?, last_error = NULL, attempts = attempts + 1, updated_at = ?
		 WHERE id = ?`,
		journaldomain.StatusPosted, externalID, at, id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE journal_requests
		 SET status = ?, last_error = ?, attempts = attempts + 1, updated_at = ?
		 WHERE id = ?`,
		journaldomain.StatusFailed, lastError, at, id,
	).Error
}

// ListRetryable returns FAILED rows and PENDING rows not touched since pendingBefore.
func (r *repo) ListRetryable(ctx context.Context, db *gorm.DB, pendingBefore time.Time, limit int) ([]journaldomain.JournalRequest, error) {
	var items []journaldomain.JournalRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+journalColumns+`
		 FROM journal_requests
		 WHERE status = ? OR (status = ? AND updated_at < ?)
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		journaldomain.StatusFailed, journaldomain.StatusPending, pendingBefore, limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
