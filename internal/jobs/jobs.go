// Package jobs runs fire-and-forget side effects of committed marketplace
// writes on a bounded worker pool.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/panjf2000/ants/v2"
	"github.com/smallbiznis/collabhub/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	JobNotificationSend = "notification.send"
	JobAnalyticsCompute = "analytics.compute"
)

const defaultJobTimeout = 30 * time.Second

var ErrUnknownJob = errors.New("unknown_job")

// Event is the payload of every marketplace job.
type Event struct {
	Entity     string       `json:"entity"`
	EntityID   snowflake.ID `json:"entity_id"`
	FromStatus string       `json:"from_status,omitempty"`
	ToStatus   string       `json:"to_status"`
	BrandID    snowflake.ID `json:"brand_id,omitempty"`
	CreatorID  snowflake.ID `json:"creator_id,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Invoker schedules a named job. It never waits for the job to run.
type Invoker interface {
	Invoke(ctx context.Context, name string, payload any) error
}

type Handler func(ctx context.Context, payload json.RawMessage) error

type PoolInvoker struct {
	pool     *ants.Pool
	handlers map[string]Handler
	log      *zap.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
}

// NewPoolInvoker builds a non-blocking pool; Invoke fails fast with
// ants.ErrPoolOverload when every worker is busy.
func NewPoolInvoker(size int, log *zap.Logger, m *metrics.Metrics, handlers map[string]Handler) (*PoolInvoker, error) {
	if size <= 0 {
		size = 16
	}
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			log.Error("job panicked", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create job pool: %w", err)
	}
	return &PoolInvoker{
		pool:     pool,
		handlers: handlers,
		log:      log.Named("jobs"),
		metrics:  m,
		timeout:  defaultJobTimeout,
	}, nil
}

func (i *PoolInvoker) Invoke(ctx context.Context, name string, payload any) error {
	handler, ok := i.handlers[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownJob)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", name, err)
	}

	// The job outlives the request that fired it.
	jobCtx := context.WithoutCancel(ctx)
	err = i.pool.Submit(func() {
		runCtx, cancel := context.WithTimeout(jobCtx, i.timeout)
		defer cancel()

		start := time.Now()
		status := "ok"
		if err := handler(runCtx, raw); err != nil {
			status = "error"
			i.log.Warn("job failed", zap.String("job", name), zap.Error(err))
		}
		i.metrics.RecordJob(runCtx, name, status, time.Since(start))
	})
	if err != nil {
		i.metrics.RecordJob(ctx, name, "rejected", 0)
		return fmt.Errorf("submit %s: %w", name, err)
	}
	return nil
}

// Running reports busy workers.
func (i *PoolInvoker) Running() int {
	return i.pool.Running()
}

func (i *PoolInvoker) Close(timeout time.Duration) error {
	return i.pool.ReleaseTimeout(timeout)
}
