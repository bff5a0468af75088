package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	"github.com/smallbiznis/collabhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/collabhub/internal/observability/metrics"
	"go.uber.org/zap"
)

const rateLimitReasonProfileRate = "profile-rate"

// MutationRateLimit throttles state-changing requests per acting profile.
// Reads and anonymous requests pass through; the latter are refused later.
func (s *Server) MutationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || !s.limiter.Enabled() || !isMutation(c.Request.Method) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		actor, ok := actorcontext.ActorFromContext(ctx)
		if !ok {
			c.Next()
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.limiter.Allow(ctx, actor)
		if err != nil {
			logger.FromContext(ctx).Warn("mutation rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			logger.FromContext(ctx).Warn("mutation rate limit exceeded",
				zap.String("reason", rateLimitReasonProfileRate),
				zap.String("endpoint", endpoint),
			)
			recordRateLimitDenied(ctx, endpoint, string(actor.Type), rateLimitReasonProfileRate, s.obsMetrics)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-Rate-Limited-Reason", rateLimitReasonProfileRate)
			AbortWithError(c, ErrRateLimited)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, string(actor.Type), s.obsMetrics)
		c.Next()
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

func recordRateLimitAllowed(ctx context.Context, endpoint, profileType string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, profileType, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, profileType, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, profileType, endpoint, reason)
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
