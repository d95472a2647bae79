package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*JournalRequest, error)
	RetryFailed(ctx context.Context, limit int) (RetryResult, error)
	GetByEntryNumber(ctx context.Context, entryNumber string) (*JournalRequest, error)
}

type SubmitRequest struct {
	TemplateCode     TemplateCode
	SourceDocument   string
	SourceDocumentID string
	Description      string
	Reference        string
	Lines            []Line
	EffectiveDate    time.Time
	CreatedBy        string
}

type RetryResult struct {
	Attempted int `json:"attempted"`
	Posted    int `json:"posted"`
	Failed    int `json:"failed"`
}

type Repository interface {
	InsertIfAbsent(ctx context.Context, db *gorm.DB, req *JournalRequest) (bool, error)
	FindBySource(ctx context.Context, db *gorm.DB, orgID snowflake.ID, sourceDocument, sourceDocumentID string, template TemplateCode) (*JournalRequest, error)
	FindByEntryNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID, entryNumber string) (*JournalRequest, error)
	CountByEntryPrefix(ctx context.Context, db *gorm.DB, orgID snowflake.ID, prefix string) (int64, error)
	MarkPosted(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID string, at time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string, at time.Time) error
	ListRetryable(ctx context.Context, db *gorm.DB, pendingBefore time.Time, limit int) ([]JournalRequest, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrUnknownTemplate     = errors.New("unknown_journal_template")
	ErrInvalidSource       = errors.New("invalid_source_document")
	ErrInvalidLines        = errors.New("invalid_journal_lines")
	ErrInvalidAccount      = errors.New("invalid_account_code")
	ErrInvalidAmount       = errors.New("invalid_journal_amount")
	ErrInvalidLineSide     = errors.New("invalid_journal_line_side")
	ErrUnbalanced          = errors.New("journal_unbalanced")
	ErrNotFound            = errors.New("journal_request_not_found")
)
