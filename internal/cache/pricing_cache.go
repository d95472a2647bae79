package cache

import (
	"strings"
	"time"

	"github.com/smallbiznis/petroprice/internal/clock"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/smallbiznis/petroprice/internal/config"
	"go.uber.org/fx"
)

// DefaultTTL bounds how stale a registry or policy read may be.
const DefaultTTL = 5 * time.Minute

var Module = fx.Module("cache",
	fx.Provide(NewPricingCache),
	fx.Provide(NewPolicyReader),
)

// PricingCache stores hot-path registry and policy lookups.
type PricingCache interface {
	GetActiveComponents(orgID, productCode string, asOf time.Time) ([]componentdomain.PricingComponent, bool)
	SetActiveComponents(orgID, productCode string, asOf time.Time, items []componentdomain.PricingComponent)
	GetPolicy(orgID string) (config.PricingPolicy, bool)
	SetPolicy(orgID string, policy config.PricingPolicy)
	InvalidateOrg(orgID string) int
}

type pricingCache struct {
	components Cache[string, []componentdomain.PricingComponent]
	policies   Cache[string, config.PricingPolicy]
	ttl        time.Duration
}

func NewPricingCache(clk clock.Clock) PricingCache {
	return &pricingCache{
		components: NewTTLCache[string, []componentdomain.PricingComponent](clk),
		policies:   NewTTLCache[string, config.PricingPolicy](clk),
		ttl:        DefaultTTL,
	}
}

func (c *pricingCache) GetActiveComponents(orgID, productCode string, asOf time.Time) ([]componentdomain.PricingComponent, bool) {
	items, ok := c.components.Get(cacheKey(orgID, productCode, asOf.UTC().Format(time.RFC3339)))
	if !ok {
		return nil, false
	}
	return cloneComponents(items), true
}

func (c *pricingCache) SetActiveComponents(orgID, productCode string, asOf time.Time, items []componentdomain.PricingComponent) {
	c.components.Set(cacheKey(orgID, productCode, asOf.UTC().Format(time.RFC3339)), cloneComponents(items), c.ttl)
}

func (c *pricingCache) GetPolicy(orgID string) (config.PricingPolicy, bool) {
	return c.policies.Get(cacheKey(orgID))
}

func (c *pricingCache) SetPolicy(orgID string, policy config.PricingPolicy) {
	c.policies.Set(cacheKey(orgID), policy, c.ttl)
}

// InvalidateOrg drops every entry owned by orgID.
func (c *pricingCache) InvalidateOrg(orgID string) int {
	prefix := cacheKey(orgID)
	match := func(key string) bool {
		return key == prefix || strings.HasPrefix(key, prefix+"|")
	}
	return c.components.DeleteFunc(match) + c.policies.DeleteFunc(match)
}

func cloneComponents(items []componentdomain.PricingComponent) []componentdomain.PricingComponent {
	if items == nil {
		return nil
	}
	out := make([]componentdomain.PricingComponent, len(items))
	copy(out, items)
	return out
}
