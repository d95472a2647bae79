package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/petroprice/internal/observability/context"
	"github.com/smallbiznis/petroprice/internal/observability/logger"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	"go.uber.org/zap"
)

const (
	HeaderOrg   = "X-Org-Id"
	HeaderActor = "X-Actor"
)

// OrgContext resolves the organization from the X-Org-Id header, falling
// back to defaultOrgID for single-tenant deployments.
func OrgContext(defaultOrgID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		var orgID snowflake.ID
		if raw != "" {
			parsed, ok := orgcontext.ParseOrgID(raw)
			if !ok {
				AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid X-Org-Id header"))
				return
			}
			orgID = parsed
		} else if defaultOrgID != 0 {
			orgID = snowflake.ID(defaultOrgID)
		} else {
			AbortWithError(c, ErrOrgRequired)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		ctx = obscontext.WithOrgID(ctx, orgID.String())
		if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
			ctx = obscontext.WithActor(ctx, "user", actor)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WriteRateLimit applies the per-org redis token bucket to mutating routes.
// Without redis every request passes.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		orgID, ok := orgcontext.OrgIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrOrgRequired)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.writeLimiter.AllowOrg(ctx, orgID.String())
		if err != nil {
			// fail open
			logger.FromContext(ctx).Warn("write rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			logger.FromContext(ctx).Warn("write rate limit exceeded", zap.String("endpoint", endpoint))
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(ctx, orgID.String(), endpoint)
			}
			retry := int(result.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}

func actorFromRequest(c *gin.Context, fallback string) string {
	if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
		return actor
	}
	return fallback
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

func respondOK(c *gin.Context, data any) {
	respond(c, http.StatusOK, data)
}
