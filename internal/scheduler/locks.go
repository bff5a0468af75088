package scheduler

import (
	"context"

	obsmetrics "github.com/smallbiznis/collabhub/internal/observability/metrics"
	"go.uber.org/zap"
)

const lockKeyPrefix = "collabhub:scheduler:"

// withJobLock keeps one replica per job running at a time. Without redis
// every replica runs the job; the versioned writes still keep the outcome
// single.
func (s *Scheduler) withJobLock(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	key := lockKeyPrefix + job
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return err
	}
	if !ok {
		obsmetrics.Scheduler().IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Debug("scheduler.job.lock_held", zap.String("job", job))
		return nil
	}
	defer func() {
		// The job context may already be done; release on a fresh one.
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger(ctx).Warn("scheduler.job.lock_release_failed", zap.String("job", job), zap.Error(err))
		}
	}()
	return fn(ctx)
}
