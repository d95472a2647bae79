package station

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DeliveryDelivered = "DELIVERED"
	DeliveryFailed    = "FAILED"
)

type Station struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
	Active bool   `json:"active"`
}

type Product struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type BreakdownItem struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Unit           string          `json:"unit"`
	Rate           decimal.Decimal `json:"rate"`
	Value          decimal.Decimal `json:"value"`
	IsOverridden   bool            `json:"isOverridden"`
	OverrideReason string          `json:"overrideReason,omitempty"`
}

type PriceItem struct {
	StationID      string          `json:"stationId"`
	ProductID      string          `json:"productId"`
	WindowID       string          `json:"windowId"`
	ExPumpPrice    decimal.Decimal `json:"exPumpPrice"`
	PriceBreakdown []BreakdownItem `json:"priceBreakdown"`
}

type PublishItemResult struct {
	StationID string `json:"stationId"`
	ProductID string `json:"productId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

//go:generate mockgen -source=client.go -destination=../../pricingwindow/service/station_mock_test.go -package=service

type Client interface {
	ListActiveStations(ctx context.Context) ([]Station, error)
	ListSupportedProducts(ctx context.Context) ([]Product, error)
	PublishPrices(ctx context.Context, items []PriceItem) ([]PublishItemResult, error)
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
	return NewWithHTTP(httpclient.FromConfig("station", p.Cfg.Providers.StationURL, p.Cfg.Providers, p.Metrics, p.Log))
}

func NewWithHTTP(c *httpclient.Client) Client {
	return &client{http: c}
}

func (c *client) ListActiveStations(ctx context.Context) ([]Station, error) {
	var out struct {
		Data []Station `json:"data"`
	}
	if err := c.http.Do(ctx, http.MethodGet, "/stations?status=active", nil, &out); err != nil {
		return nil, err
	}
	active := out.Data[:0]
	for _, s := range out.Data {
		if s.Active {
			active = append(active, s)
		}
	}
	return active, nil
}

func (c *client) ListSupportedProducts(ctx context.Context) ([]Product, error) {
	var out struct {
		Data []Product `json:"data"`
	}
	if err := c.http.Do(ctx, http.MethodGet, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *client) PublishPrices(ctx context.Context, items []PriceItem) ([]PublishItemResult, error) {
	var out struct {
		Results []PublishItemResult `json:"results"`
	}
	err := c.http.Do(ctx, http.MethodPost, "/prices/batch", map[string]any{"items": items}, &out)
	if err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *client) HealthCheck(ctx context.Context) error {
	return c.http.HealthCheck(ctx)
}
