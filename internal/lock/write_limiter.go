package lock

import (
	"context"
	"fmt"
	"strings"
)

const keyWriteLimitOrg = "write:org:%s"

// WriteLimiter throttles mutating API calls per organization.
type WriteLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewWriteLimiter(bucket *TokenBucket, rate float64, burst int) *WriteLimiter {
	if bucket == nil || rate <= 0 || burst <= 0 {
		return nil
	}
	return &WriteLimiter{bucket: bucket, rate: rate, burst: burst}
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WriteLimiter) AllowOrg(ctx context.Context, orgID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWriteLimitOrg, strings.TrimSpace(orgID)), l.rate, l.burst)
}
