package ratelimit

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	"github.com/smallbiznis/collabhub/internal/config"
	"go.uber.org/zap"
)

const keyMutation = "ratelimit:mutation:%s:%s"

// MutationLimiter throttles state-changing requests per acting profile.
// System actors are never throttled.
type MutationLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewMutationLimiter returns a disabled limiter when redis is absent or the
// configured rate is not positive.
func NewMutationLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *MutationLimiter {
	if client == nil || cfg.MutationRatePerSecond <= 0 || cfg.MutationBurst <= 0 {
		log.Info("mutation rate limit disabled")
		return &MutationLimiter{}
	}
	return &MutationLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.MutationRatePerSecond,
		burst:  cfg.MutationBurst,
	}
}

func (l *MutationLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *MutationLimiter) Allow(ctx context.Context, actor actorcontext.Actor) (*RateLimitResult, error) {
	if !l.Enabled() || actor.Type == actorcontext.ProfileSystem {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyMutation, actor.Type, actor.ID)
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
