package cache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/petroprice/internal/clock"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpires(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	c := NewTTLCache[string, int](clk)

	c.Set("a", 1, time.Minute)
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, got)

	clk.Advance(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestPricingCacheInvalidateOrg(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	c := NewPricingCache(clk)
	asOf := clk.Now()

	items := []componentdomain.PricingComponent{{Code: "ESRL", RateValue: decimal.RequireFromString("0.20")}}
	c.SetActiveComponents("1", "PMS", asOf, items)
	c.SetActiveComponents("2", "PMS", asOf, items)
	c.SetPolicy("1", config.DefaultPricingPolicy())

	assert.Equal(t, 2, c.InvalidateOrg("1"))

	_, ok := c.GetActiveComponents("1", "PMS", asOf)
	assert.False(t, ok)
	_, ok = c.GetPolicy("1")
	assert.False(t, ok)

	got, ok := c.GetActiveComponents("2", "PMS", asOf)
	require.True(t, ok)
	assert.Equal(t, "ESRL", got[0].Code)
}

func TestPricingCacheServesStaleWithinTTL(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	c := NewPricingCache(clk)

	c.SetPolicy("1", config.DefaultPricingPolicy())
	clk.Advance(DefaultTTL - time.Second)
	_, ok := c.GetPolicy("1")
	assert.True(t, ok)

	clk.Advance(time.Second)
	_, ok = c.GetPolicy("1")
	assert.False(t, ok)
}

func TestPolicyReaderCachesUntilInvalidated(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	c := NewPricingCache(clk)

	policy := config.DefaultPricingPolicy()
	policy.WithholdingTaxPct = 7.5
	c.SetPolicy("100", policy)

	reader := NewPolicyReader(c, config.NewStaticPolicyHolder(config.DefaultPricingPolicy()))
	got := reader.Policy("100")
	assert.Equal(t, 7.5, got.WithholdingTaxPct)

	var nilReader *PolicyReader
	assert.Equal(t, 10000.0, nilReader.Policy("100").SettlementApprovalThreshold)

	clk.Advance(DefaultTTL + time.Second)
	got = reader.Policy("100")
	assert.Equal(t, 2.0, got.ReconciliationTolerancePct)
}
