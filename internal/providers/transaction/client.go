package transaction

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

type Consignment struct {
	ConsignmentID     string          `json:"consignmentId"`
	RouteID           string          `json:"routeId"`
	ProductCode       string          `json:"productCode"`
	StationID         string          `json:"stationId"`
	DepotLitres       decimal.Decimal `json:"depotLitres"`
	TransporterLitres decimal.Decimal `json:"transporterLitres"`
	StationLitres     decimal.Decimal `json:"stationLitres"`
	PlannedKm         decimal.Decimal `json:"plannedKm"`
	ActualKm          decimal.Decimal `json:"actualKm"`
	DeliveredAt       time.Time       `json:"deliveredAt"`
}

type Client interface {
	GetConsignment(ctx context.Context, id string) (*Consignment, error)
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
	return NewWithHTTP(httpclient.FromConfig("transaction", p.Cfg.Providers.TransactionURL, p.Cfg.Providers, p.Metrics, p.Log))
}

func NewWithHTTP(c *httpclient.Client) Client {
	return &client{http: c}
}

// GetConsignment returns httpclient.ErrNotFound (via errors.Is) for unknown ids.
func (c *client) GetConsignment(ctx context.Context, id string) (*Consignment, error) {
	var out Consignment
	if err := c.http.Do(ctx, http.MethodGet, "/consignments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	if out.ConsignmentID == "" {
		out.ConsignmentID = id
	}
	return &out, nil
}

func (c *client) HealthCheck(ctx context.Context) error {
	return c.http.HealthCheck(ctx)
}
