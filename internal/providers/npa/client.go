package npa

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

type ProductRate struct {
	ProductCode string          `json:"productCode"`
	Rate        decimal.Decimal `json:"rate"`
}

// RateSheet is the regulator's current UPPF tariff per product.
type RateSheet struct {
	Reference     string        `json:"reference"`
	EffectiveDate time.Time     `json:"effectiveDate"`
	Rates         []ProductRate `json:"rates"`
}

type ClaimItem struct {
	ClaimNumber   string          `json:"claimNumber"`
	ConsignmentID string          `json:"consignmentId"`
	RouteID       string          `json:"routeId"`
	ProductCode   string          `json:"productCode"`
	KmBeyond      decimal.Decimal `json:"kmBeyondEqualisation"`
	LitresMoved   decimal.Decimal `json:"litresMoved"`
	Tariff        decimal.Decimal `json:"tariffPerLitreKm"`
	ClaimAmount   decimal.Decimal `json:"claimAmount"`
}

type ClaimBatch struct {
	SubmissionReference string      `json:"submissionReference"`
	WindowID            string      `json:"windowId"`
	SubmittedAt         time.Time   `json:"submittedAt"`
	Claims              []ClaimItem `json:"claims"`
}

type SubmissionAck struct {
	SubmissionReference string `json:"submissionReference"`
	Status              string `json:"status"`
	Accepted            int    `json:"accepted"`
}

type Client interface {
	FetchUPPFRates(ctx context.Context) (*RateSheet, error)
	SubmitClaims(ctx context.Context, batch ClaimBatch) (*SubmissionAck, error)
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
	return NewWithHTTP(httpclient.FromConfig("npa", p.Cfg.Providers.NPAURL, p.Cfg.Providers, p.Metrics, p.Log))
}

func NewWithHTTP(c *httpclient.Client) Client {
	return &client{http: c}
}

func (c *client) FetchUPPFRates(ctx context.Context) (*RateSheet, error) {
	var out RateSheet
	if err := c.http.Do(ctx, http.MethodGet, "/uppf/rates/current", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) SubmitClaims(ctx context.Context, batch ClaimBatch) (*SubmissionAck, error) {
	var out SubmissionAck
	err := c.http.Send(ctx, httpclient.Request{
		Method:         http.MethodPost,
		Path:           "/uppf/claims",
		Body:           batch,
		IdempotencyKey: batch.SubmissionReference,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) HealthCheck(ctx context.Context) error {
	return c.http.HealthCheck(ctx)
}
