package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes pricing domain instruments.
type Metrics struct {
	pricesPublished  metric.Int64Counter
	claimsCreated    metric.Int64Counter
	claimAmount      metric.Float64Counter
	rateAlerts       metric.Int64Counter
	journalRequests  metric.Int64Counter
	providerCalls    metric.Int64Counter
	providerLatency  metric.Float64Histogram
	rateLimitDenied  metric.Int64Counter
	settlementPosted metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "petroprice"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.pricesPublished, err = meter.Int64Counter("petroprice_station_prices_published_total"); err != nil {
		return nil, err
	}
	if m.claimsCreated, err = meter.Int64Counter("petroprice_uppf_claims_total"); err != nil {
		return nil, err
	}
	if m.claimAmount, err = meter.Float64Counter("petroprice_uppf_claim_amount_total"); err != nil {
		return nil, err
	}
	if m.rateAlerts, err = meter.Int64Counter("petroprice_uppf_rate_alerts_total"); err != nil {
		return nil, err
	}
	if m.journalRequests, err = meter.Int64Counter("petroprice_journal_requests_total"); err != nil {
		return nil, err
	}
	if m.providerCalls, err = meter.Int64Counter("petroprice_provider_requests_total"); err != nil {
		return nil, err
	}
	if m.providerLatency, err = meter.Float64Histogram("petroprice_provider_request_duration_seconds"); err != nil {
		return nil, err
	}
	if m.rateLimitDenied, err = meter.Int64Counter("petroprice_rate_limit_denied_total"); err != nil {
		return nil, err
	}
	if m.settlementPosted, err = meter.Int64Counter("petroprice_dealer_settlements_total"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPricesPublished counts station price rows per delivery outcome.
func (m *Metrics) RecordPricesPublished(ctx context.Context, productCode, status string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(
		attribute.String("product_code", strings.TrimSpace(productCode)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.pricesPublished.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordClaim(ctx context.Context, productCode, status string, amount float64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("product_code", strings.TrimSpace(productCode)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.claimsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
	if amount > 0 {
		m.claimAmount.Add(ctx, amount, metric.WithAttributes(attrs...))
	}
}

func (m *Metrics) RecordRateAlert(ctx context.Context, productCode, severity string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("product_code", strings.TrimSpace(productCode)),
		attribute.String("severity", strings.TrimSpace(severity)),
	)
	m.rateAlerts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordJournalRequest counts journal requests by template and outcome.
func (m *Metrics) RecordJournalRequest(ctx context.Context, templateCode, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("template_code", strings.TrimSpace(templateCode)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.journalRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordProviderCall records one outbound collaborator request.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.Int("status_code", statusCode),
	)
	m.providerCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.providerLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, orgID, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSettlement(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.settlementPosted.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("status", status))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":        {},
	"endpoint":      {},
	"status_code":   {},
	"status":        {},
	"product_code":  {},
	"provider":      {},
	"severity":      {},
	"template_code": {},
	"reason":        {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
