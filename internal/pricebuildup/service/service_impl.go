package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/petroprice/internal/cache"
	"github.com/smallbiznis/petroprice/internal/clock"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	pricebuildupdomain "github.com/smallbiznis/petroprice/internal/pricebuildup/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	ComponentSvc componentdomain.Service
	Policy       *cache.PolicyReader `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	clock        clock.Clock
	componentSvc componentdomain.Service
	policy       *cache.PolicyReader
}

func New(p Params) pricebuildupdomain.Service {
	return &Service{
		log:          p.Log.Named("pricebuildup.service"),
		clock:        p.Clock,
		componentSvc: p.ComponentSvc,
		policy:       p.Policy,
	}
}

// CalculatePrice runs the build-up over the registry snapshot at the
// effective date. A failed validation is reported, not returned as an error.
func (s *Service) CalculatePrice(ctx context.Context, req pricebuildupdomain.CalculateRequest) (*pricebuildupdomain.Calculation, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, componentdomain.ErrInvalidOrganization
	}
	productCode := strings.ToUpper(strings.TrimSpace(req.ProductCode))
	if productCode == "" {
		return nil, pricebuildupdomain.ErrInvalidProduct
	}
	for _, o := range req.Overrides {
		if strings.TrimSpace(o.ComponentCode) == "" || o.Value.IsNegative() {
			return nil, pricebuildupdomain.ErrInvalidOverride
		}
	}

	effectiveDate := req.EffectiveDate
	if effectiveDate.IsZero() {
		effectiveDate = s.clock.Now()
	}

	components, err := s.componentSvc.GetActiveComponents(ctx, effectiveDate, productCode)
	if err != nil {
		return nil, err
	}

	var exRefinery decimal.Decimal
	if req.ExRefineryPrice != nil {
		exRefinery = *req.ExRefineryPrice
	} else {
		found := false
		for _, c := range components {
			if c.Code == componentdomain.CodeExRefinery {
				exRefinery = c.RateValue
				found = true
				break
			}
		}
		if !found {
			return nil, pricebuildupdomain.ErrExRefineryNotFound
		}
	}

	result := pricebuildupdomain.Calculate(pricebuildupdomain.Input{
		ProductCode:     productCode,
		EffectiveDate:   effectiveDate,
		ExRefineryPrice: exRefinery,
		Components:      components,
		Overrides:       req.Overrides,
	})
	validation := pricebuildupdomain.ValidateWithin(result, components, s.bounds(orgID.String()))

	s.log.Debug("price calculated",
		zap.String("org_id", orgID.String()),
		zap.String("product_code", productCode),
		zap.String("ex_pump_price", result.ExPumpPrice.String()),
		zap.Int("errors", len(validation.Errors)),
		zap.Int("warnings", len(validation.Warnings)),
	)

	return &pricebuildupdomain.Calculation{Result: result, Validation: validation}, nil
}

func (s *Service) bounds(orgID string) pricebuildupdomain.Bounds {
	bounds := pricebuildupdomain.DefaultBounds()
	if s.policy == nil {
		return bounds
	}
	policy := s.policy.Policy(orgID)
	bounds.MinPrice = decimal.NewFromFloat(policy.MinPumpPrice)
	bounds.MaxPrice = decimal.NewFromFloat(policy.MaxPumpPrice)
	if len(policy.RequiredComponents) > 0 {
		bounds.RequiredCodes = policy.RequiredComponents
	}
	return bounds
}
