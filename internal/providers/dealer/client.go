package dealer

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	NoticeSettlementPosted = "SETTLEMENT_POSTED"
	NoticeSettlementPaid   = "SETTLEMENT_PAID"
)

type Dealer struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	StationID string `json:"stationId,omitempty"`
	Status    string `json:"status"`
}

type CreditProfile struct {
	DealerID    string          `json:"dealerId"`
	CreditLimit decimal.Decimal `json:"creditLimit"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Rating      string          `json:"rating,omitempty"`
}

type SettlementNotice struct {
	Type             string          `json:"type"`
	SettlementNumber string          `json:"settlementNumber"`
	DealerID         string          `json:"dealerId"`
	WindowID         string          `json:"windowId"`
	NetPayable       decimal.Decimal `json:"netPayable"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	OccurredAt       time.Time       `json:"occurredAt"`
}

type Client interface {
	GetDealer(ctx context.Context, id string) (*Dealer, error)
	GetCreditProfile(ctx context.Context, id string) (*CreditProfile, error)
	NotifySettlement(ctx context.Context, notice SettlementNotice) error
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
	return NewWithHTTP(httpclient.FromConfig("dealer", p.Cfg.Providers.DealerURL, p.Cfg.Providers, p.Metrics, p.Log))
}

func NewWithHTTP(c *httpclient.Client) Client {
	return &client{http: c}
}

func (c *client) GetDealer(ctx context.Context, id string) (*Dealer, error) {
	var out Dealer
	if err := c.http.Do(ctx, http.MethodGet, "/dealers/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) GetCreditProfile(ctx context.Context, id string) (*CreditProfile, error) {
	var out CreditProfile
	if err := c.http.Do(ctx, http.MethodGet, "/dealers/"+url.PathEscape(id)+"/credit-profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) NotifySettlement(ctx context.Context, notice SettlementNotice) error {
	return c.http.Send(ctx, httpclient.Request{
		Method:         http.MethodPost,
		Path:           "/dealers/" + url.PathEscape(notice.DealerID) + "/settlements",
		Body:           notice,
		IdempotencyKey: notice.Type + ":" + notice.SettlementNumber,
	}, nil)
}

func (c *client) HealthCheck(ctx context.Context) error {
	return c.http.HealthCheck(ctx)
}
