package cache

import (
	"github.com/smallbiznis/petroprice/internal/config"
)

// PolicyReader serves the hot-reloaded pricing policy through the TTL cache,
// so a reload becomes visible to an org within DefaultTTL.
type PolicyReader struct {
	cache  PricingCache
	holder *config.PolicyHolder
}

func NewPolicyReader(c PricingCache, holder *config.PolicyHolder) *PolicyReader {
	return &PolicyReader{cache: c, holder: holder}
}

func (r *PolicyReader) Policy(orgID string) config.PricingPolicy {
	if r == nil {
		return config.NewStaticPolicyHolder(config.DefaultPricingPolicy()).Get()
	}
	if r.cache != nil {
		if policy, ok := r.cache.GetPolicy(orgID); ok {
			return policy
		}
	}
	policy := r.holder.Get()
	if r.cache != nil {
		r.cache.SetPolicy(orgID, policy)
	}
	return policy
}

