package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed baseline.yml
var baselineYAML []byte

var Module = fx.Module("seed",
	fx.Invoke(Run),
)

// Baseline is the registry and route set a fresh deployment starts from.
type Baseline struct {
	EffectiveFrom    time.Time       `yaml:"effective_from"`
	SourceDocumentID string          `yaml:"source_document_id"`
	Components       []ComponentSeed `yaml:"components"`
	Routes           []RouteSeed     `yaml:"routes"`
}

type ComponentSeed struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Unit     string `yaml:"unit"`
	Rate     string `yaml:"rate"`
	Product  string `yaml:"product"`
}

type RouteSeed struct {
	RouteID     string `yaml:"route_id"`
	Name        string `yaml:"name"`
	KmThreshold string `yaml:"km_threshold"`
	RouteType   string `yaml:"route_type"`
}

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Components componentdomain.Service
	Routes     reconciliationdomain.Service
}

// Run seeds the default organization when SEED_BASELINE is set.
func Run(p Params) error {
	if !p.Cfg.SeedBaseline {
		return nil
	}
	if p.Cfg.DefaultOrgID == 0 {
		return errors.New("seed baseline requires DEFAULT_ORG")
	}

	baseline, err := LoadBaseline(baselineYAML)
	if err != nil {
		return err
	}

	ctx := orgcontext.WithOrgID(context.Background(), snowflake.ID(p.Cfg.DefaultOrgID))
	return Apply(ctx, p.Log.Named("seed"), baseline, p.Components, p.Routes)
}

func LoadBaseline(data []byte) (Baseline, error) {
	var baseline Baseline
	if err := yaml.Unmarshal(data, &baseline); err != nil {
		return Baseline{}, fmt.Errorf("parse baseline: %w", err)
	}
	if baseline.EffectiveFrom.IsZero() {
		return Baseline{}, errors.New("baseline effective_from is required")
	}
	return baseline, nil
}

// Apply inserts any baseline component code the registry has never seen and
// upserts every route. Codes with history are left alone.
func Apply(ctx context.Context, log *zap.Logger, baseline Baseline, components componentdomain.Service, routes reconciliationdomain.Service) error {
	seeded := 0
	for _, item := range baseline.Components {
		history, err := components.ListHistory(ctx, item.Code)
		if err != nil {
			return fmt.Errorf("component %s: %w", item.Code, err)
		}
		if len(history) > 0 {
			continue
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(item.Rate))
		if err != nil {
			return fmt.Errorf("component %s: invalid rate %q", item.Code, item.Rate)
		}
		req := componentdomain.UpsertRequest{
			Code:             item.Code,
			Name:             item.Name,
			Category:         componentdomain.Category(item.Category),
			Unit:             componentdomain.Unit(item.Unit),
			RateValue:        rate,
			EffectiveFrom:    baseline.EffectiveFrom,
			SourceDocumentID: baseline.SourceDocumentID,
		}
		if product := strings.TrimSpace(item.Product); product != "" {
			req.ProductCode = &product
		}
		if _, err := components.UpsertRate(ctx, req); err != nil {
			return fmt.Errorf("component %s: %w", item.Code, err)
		}
		seeded++
	}

	for _, item := range baseline.Routes {
		threshold, err := decimal.NewFromString(strings.TrimSpace(item.KmThreshold))
		if err != nil {
			return fmt.Errorf("route %s: invalid km_threshold %q", item.RouteID, item.KmThreshold)
		}
		if _, err := routes.UpsertRoute(ctx, reconciliationdomain.Route{
			RouteID:     item.RouteID,
			Name:        item.Name,
			KmThreshold: threshold,
			RouteType:   reconciliationdomain.RouteType(item.RouteType),
		}); err != nil {
			return fmt.Errorf("route %s: %w", item.RouteID, err)
		}
	}

	log.Info("baseline seeded",
		zap.Int("components", seeded),
		zap.Int("routes", len(baseline.Routes)),
	)
	return nil
}
