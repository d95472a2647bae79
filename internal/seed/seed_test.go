package seed

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeComponents struct {
	componentdomain.Service

	existing map[string]bool
	upserts  []componentdomain.UpsertRequest
}

func (f *fakeComponents) ListHistory(ctx context.Context, code string) ([]componentdomain.PricingComponent, error) {
	if f.existing[code] {
		return []componentdomain.PricingComponent{{Code: code}}, nil
	}
	return nil, nil
}

func (f *fakeComponents) UpsertRate(ctx context.Context, req componentdomain.UpsertRequest) (*componentdomain.PricingComponent, error) {
	f.upserts = append(f.upserts, req)
	return &componentdomain.PricingComponent{Code: req.Code}, nil
}

type fakeRoutes struct {
	reconciliationdomain.Service

	routes []reconciliationdomain.Route
}

func (f *fakeRoutes) UpsertRoute(ctx context.Context, r reconciliationdomain.Route) (*reconciliationdomain.Route, error) {
	f.routes = append(f.routes, r)
	return &r, nil
}

func TestEmbeddedBaselineParses(t *testing.T) {
	baseline, err := LoadBaseline(baselineYAML)
	require.NoError(t, err)

	assert.NotEmpty(t, baseline.Components)
	assert.NotEmpty(t, baseline.Routes)
	for _, c := range baseline.Components {
		assert.True(t, componentdomain.Category(c.Category).Valid(), c.Code)
		assert.True(t, componentdomain.Unit(c.Unit).Valid(), c.Code)
		_, err := decimal.NewFromString(c.Rate)
		assert.NoError(t, err, c.Code)
	}
}

func TestApplySkipsCodesWithHistory(t *testing.T) {
	baseline, err := LoadBaseline(baselineYAML)
	require.NoError(t, err)

	components := &fakeComponents{existing: map[string]bool{"BOST": true, "UPPF": true}}
	routes := &fakeRoutes{}

	require.NoError(t, Apply(context.Background(), zap.NewNop(), baseline, components, routes))

	assert.Len(t, components.upserts, len(baseline.Components)-2)
	for _, req := range components.upserts {
		assert.NotEqual(t, "BOST", req.Code)
		assert.NotEqual(t, "UPPF", req.Code)
		assert.True(t, req.EffectiveFrom.Equal(baseline.EffectiveFrom))
	}
	assert.Len(t, routes.routes, len(baseline.Routes))
}

func TestApplyScopesProductComponents(t *testing.T) {
	baseline := Baseline{
		Components: []ComponentSeed{
			{Code: "EDRL", Name: "Energy Debt Recovery Levy", Category: "LEVY", Unit: "PER_LITRE", Rate: "0.49", Product: "PMS"},
		},
	}
	components := &fakeComponents{}

	require.NoError(t, Apply(context.Background(), zap.NewNop(), baseline, components, &fakeRoutes{}))

	require.Len(t, components.upserts, 1)
	require.NotNil(t, components.upserts[0].ProductCode)
	assert.Equal(t, "PMS", *components.upserts[0].ProductCode)
}

func TestApplyRejectsBadRate(t *testing.T) {
	baseline := Baseline{
		Components: []ComponentSeed{{Code: "X", Category: "LEVY", Unit: "PER_LITRE", Rate: "abc"}},
	}

	err := Apply(context.Background(), zap.NewNop(), baseline, &fakeComponents{}, &fakeRoutes{})
	assert.Error(t, err)
}

func TestLoadBaselineRequiresEffectiveDate(t *testing.T) {
	_, err := LoadBaseline([]byte("components: []\n"))
	assert.Error(t, err)
}
