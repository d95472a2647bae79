package slack

import (
	"context"
	"net/http"

	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Provider posts operator alerts (critical rate changes, rate sync fallbacks).
type Provider interface {
	PostMessage(ctx context.Context, channelID string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	return nil
}

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

// New returns a webhook provider, or a no-op one when no webhook is configured.
func New(p Params) Provider {
	if p.Cfg.Providers.AlertWebhookURL == "" {
		return &NoOpProvider{}
	}
	return NewWebhook(httpclient.FromConfig("slack", p.Cfg.Providers.AlertWebhookURL, p.Cfg.Providers, p.Metrics, p.Log))
}

type webhookProvider struct {
	http *httpclient.Client
}

func NewWebhook(c *httpclient.Client) Provider {
	return &webhookProvider{http: c}
}

func (p *webhookProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	body := map[string]string{"text": message}
	if channelID != "" {
		body["channel"] = channelID
	}
	return p.http.Do(ctx, http.MethodPost, "", body, nil)
}
