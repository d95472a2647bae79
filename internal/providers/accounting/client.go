package accounting

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type JournalLine struct {
	AccountCode  string           `json:"accountCode"`
	DebitAmount  *decimal.Decimal `json:"debitAmount,omitempty"`
	CreditAmount *decimal.Decimal `json:"creditAmount,omitempty"`
	Description  string           `json:"description,omitempty"`
}

type JournalEntryRequest struct {
	EntryNumber      string        `json:"entryNumber"`
	TemplateCode     string        `json:"templateCode"`
	SourceDocument   string        `json:"sourceDocument"`
	SourceDocumentID string        `json:"sourceDocumentId"`
	Description      string        `json:"description"`
	Reference        string        `json:"reference,omitempty"`
	Lines            []JournalLine `json:"lines"`
	CreatedBy        string        `json:"createdBy"`
	EffectiveDate    time.Time     `json:"effectiveDate"`
}

type JournalEntryResponse struct {
	EntryID     string `json:"entryId"`
	EntryNumber string `json:"entryNumber"`
	Status      string `json:"status"`
}

type Client interface {
	PostJournal(ctx context.Context, req JournalEntryRequest) (*JournalEntryResponse, error)
	HealthCheck(ctx context.Context) error
}

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type client struct {
	http *httpclient.Client
}

func New(p Params) Client {
	return NewWithHTTP(httpclient.FromConfig("accounting", p.Cfg.Providers.AccountingURL, p.Cfg.Providers, p.Metrics, p.Log))
}

func NewWithHTTP(c *httpclient.Client) Client {
	return &client{http: c}
}

// PostJournal keys the request on the entry number so a retried post is
// deduplicated downstream.
func (c *client) PostJournal(ctx context.Context, req JournalEntryRequest) (*JournalEntryResponse, error) {
	var out JournalEntryResponse
	err := c.http.Send(ctx, httpclient.Request{
		Method:         http.MethodPost,
		Path:           "/journal-entries",
		Body:           req,
		IdempotencyKey: req.EntryNumber,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) HealthCheck(ctx context.Context) error {
	return c.http.HealthCheck(ctx)
}
