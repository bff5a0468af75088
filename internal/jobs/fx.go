package jobs

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/collabhub/internal/config"
	"github.com/smallbiznis/collabhub/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("jobs",
	fx.Provide(newPublisher),
	fx.Provide(newInvoker),
	fx.Provide(func(i *PoolInvoker) Invoker { return i }),
)

func newPublisher(client *redis.Client, log *zap.Logger) Publisher {
	if client == nil {
		return NewLogPublisher(log.Named("jobs"))
	}
	return NewRedisPublisher(client)
}

func newInvoker(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, m *metrics.Metrics, pub Publisher) (*PoolInvoker, error) {
	invoker, err := NewPoolInvoker(cfg.JobPoolSize, log, m, DefaultHandlers(pub))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			timeout := 5 * time.Second
			if deadline, ok := ctx.Deadline(); ok {
				timeout = time.Until(deadline)
			}
			return invoker.Close(timeout)
		},
	})
	return invoker, nil
}
