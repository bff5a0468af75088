package cache

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/collabhub/internal/clock"
	"github.com/smallbiznis/collabhub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewStore),
	fx.Provide(func(s Store) Invalidator { return s }),
)

// NewRedisClient returns nil when REDIS_ADDR is unset; consumers fall back
// to process-local behaviour.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("redis not configured, using in-process cache")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewStore(client *redis.Client, c clock.Clock) Store {
	if client == nil {
		return NewMemoryStore(c)
	}
	return NewRedisStore(client, c)
}
