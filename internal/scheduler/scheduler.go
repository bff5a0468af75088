package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/clock"
	"github.com/smallbiznis/collabhub/internal/config"
	"github.com/smallbiznis/collabhub/internal/marketplace/consistency"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	obsmetrics "github.com/smallbiznis/collabhub/internal/observability/metrics"
	"github.com/smallbiznis/collabhub/internal/ratelimit"
	"github.com/smallbiznis/collabhub/internal/scheduler/guard"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobCloseApplications = "close_applications"
	JobReconcile         = "reconcile"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

// Reconciler runs the consistency engine over every marketplace record.
type Reconciler interface {
	Reconcile(ctx context.Context, repair bool) (consistency.Report, error)
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Marketplace domain.Service
	Reconciler  Reconciler
	Repo        domain.Repository
	Policy      *config.LifecyclePolicyHolder
	GenID       *snowflake.Node
	Clock       clock.Clock
	Locker      *ratelimit.Locker `optional:"true"`
	Config      Config            `optional:"true"`
}

type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	marketplace domain.Service
	reconciler  Reconciler
	repo        domain.Repository
	policy      *config.LifecyclePolicyHolder
	locker      *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Marketplace == nil || p.Reconciler == nil || p.Repo == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	policy := p.Policy
	if policy == nil {
		policy = config.NewStaticPolicyHolder(config.DefaultLifecyclePolicy())
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		genID:       p.GenID,
		clock:       p.Clock,
		marketplace: p.Marketplace,
		reconciler:  p.Reconciler,
		repo:        p.Repo,
		policy:      policy,
		locker:      p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.withJobLock(ctx, name, fn)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobCloseApplications, func(ctx context.Context) error {
			return s.runJob(ctx, JobCloseApplications, s.cfg.BatchSize, s.cfg.JobTimeout, s.CloseApplicationsJob)
		}},
		{JobReconcile, func(ctx context.Context) error {
			return s.runJob(ctx, JobReconcile, 1, s.cfg.JobTimeout, s.ReconcileJob)
		}},
	}

	var err error
	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		if lag := time.Since(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// CloseApplicationsJob moves active campaigns whose application deadline
// has passed to applications_closed, walking candidates by descending id.
func (s *Scheduler) CloseApplicationsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobCloseApplications, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	schedMetrics := obsmetrics.Scheduler()
	var (
		jobErr error
		cursor snowflake.ID
	)

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		campaigns, err := s.repo.ListCampaigns(ctx, s.db.WithContext(ctx), domain.CampaignFilter{
			Page:                      domain.Page{Cursor: cursor, Limit: s.cfg.BatchSize},
			Statuses:                  []domain.CampaignStatus{domain.CampaignStatusActive},
			ApplicationDeadlineBefore: &now,
		})
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.campaign.fetch.failed", JobCloseApplications, err)
			return errors.Join(jobErr, err)
		}
		if len(campaigns) == 0 {
			break
		}

		processed := 0
		for _, campaign := range campaigns {
			cursor = campaign.ID
			if err := guard.EnsureCampaignCanCloseApplications(campaign.Status, campaign.ApplicationDeadline, now); err != nil {
				s.deferCampaign(ctx, run, campaign.ID, err.Error())
				continue
			}
			_, err := s.marketplace.CloseApplications(ctx, campaign.ID)
			switch {
			case err == nil:
				processed++
				s.logger(ctx).Debug("scheduler.campaign.applications_closed",
					zap.String("campaign_id", campaign.ID.String()),
					zap.String("brand_id", campaign.BrandID.String()),
				)
			case errors.Is(err, domain.ErrConcurrentModification), errors.Is(err, domain.ErrIllegalTransition):
				// Someone else moved the campaign since it was listed.
				s.deferCampaign(ctx, run, campaign.ID, obsmetrics.ClassifySchedulerJobReason(err))
			default:
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(ctx, run, "scheduler.campaign.close.failed", JobCloseApplications, err,
					zap.String("campaign_id", campaign.ID.String()),
				)
			}
		}
		run.AddProcessed(processed)
		schedMetrics.AddBatchProcessed(JobCloseApplications, "campaign", processed)
		if len(campaigns) < s.cfg.BatchSize {
			break
		}
	}
	return jobErr
}

func (s *Scheduler) deferCampaign(ctx context.Context, run *jobRun, id snowflake.ID, reason string) {
	run.IncDeferred()
	obsmetrics.Scheduler().IncBatchDeferred(JobCloseApplications, reason)
	s.logger(ctx).Info("scheduler.campaign.deferred",
		zap.String("campaign_id", id.String()),
		zap.String("reason", reason),
	)
}

// ReconcileJob publishes per-check drift and, when the lifecycle policy
// allows it, rewrites drifted counters.
func (s *Scheduler) ReconcileJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobReconcile, 1)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	repair := s.policy.Get().RepairDrift

	report, err := s.reconciler.Reconcile(ctx, repair)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.reconcile.failed", JobReconcile, err, zap.Bool("repair", repair))
		return err
	}

	schedMetrics := obsmetrics.Scheduler()
	byCheck := report.DriftByCheck()
	schedMetrics.SetDrift(byCheck)
	run.AddProcessed(len(report.Results))
	if !repair {
		return nil
	}
	for check, n := range byCheck {
		if consistency.Repairable(check) {
			schedMetrics.AddRepairs(check, n)
		}
	}
	return nil
}
