package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	auditdomain "github.com/smallbiznis/collabhub/internal/audit/domain"
	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/cache"
	"github.com/smallbiznis/collabhub/internal/clock"
	"github.com/smallbiznis/collabhub/internal/config"
	"github.com/smallbiznis/collabhub/internal/jobs"
	"github.com/smallbiznis/collabhub/internal/marketplace/consistency"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/lifecycle"
	"github.com/smallbiznis/collabhub/internal/observability/logger"
	"github.com/smallbiznis/collabhub/internal/observability/metrics"
	"github.com/smallbiznis/collabhub/internal/observability/tracing"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Authz  authorization.Service
	Policy *config.LifecyclePolicyHolder

	AuditSvc auditdomain.Service `optional:"true"`
	Cache    cache.Store         `optional:"true"`
	Jobs     jobs.Invoker        `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	authz    authorization.Service
	policy   *config.LifecyclePolicyHolder
	auditSvc auditdomain.Service
	cache    cache.Store
	jobs     jobs.Invoker
	metrics  *metrics.Metrics
	engine   *consistency.Engine
	tracer   trace.Tracer
}

func NewService(p Params) *Service {
	policy := p.Policy
	if policy == nil {
		policy = config.NewStaticPolicyHolder(config.DefaultLifecyclePolicy())
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("marketplace.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		authz:    p.Authz,
		policy:   policy,
		auditSvc: p.AuditSvc,
		cache:    p.Cache,
		jobs:     p.Jobs,
		metrics:  p.Metrics,
		engine:   consistency.NewEngine(p.Clock),
		tracer:   tracing.Tracer("marketplace"),
	}
}

var _ domain.Service = (*Service)(nil)

// orchestrator is rebuilt per call so policy reloads apply to the next
// mutation without a restart.
func (s *Service) orchestrator() *lifecycle.Orchestrator {
	return lifecycle.NewOrchestrator(lifecycle.Policy{ReopenApproved: s.policy.Get().ReopenApproved})
}

func (s *Service) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "marketplace."+op)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// authorize checks the role policy and returns the acting profile.
func (s *Service) authorize(ctx context.Context, object, action string) (actorcontext.Actor, error) {
	return s.authz.Authorize(ctx, object, action)
}

// ensureParty rejects brand and creator actors that are not the record's
// owning profile. Arbitrators and the system act on every record.
func ensureParty(actor actorcontext.Actor, brandID, creatorID snowflake.ID) error {
	switch actor.Type {
	case actorcontext.ProfileArbitrator, actorcontext.ProfileSystem:
		return nil
	case actorcontext.ProfileBrand:
		if brandID != 0 && actor.ID == brandID {
			return nil
		}
	case actorcontext.ProfileCreator:
		if creatorID != 0 && actor.ID == creatorID {
			return nil
		}
	}
	return domain.ErrForbidden
}

// validate runs the orchestrator and counts rule failures.
func (s *Service) validate(ctx context.Context, orch *lifecycle.Orchestrator, entity lifecycle.Entity, target string, related lifecycle.Related) error {
	err := orch.ValidateTransition(entity, target, related)
	var violation *domain.RuleViolationError
	if errors.As(err, &violation) {
		for _, v := range violation.Violations {
			s.metrics.RecordRuleViolation(ctx, string(violation.Entity), v.Rule)
		}
	}
	return err
}

// inTx runs fn in one transaction and applies the collected side effects
// only after it commits.
func (s *Service) inTx(ctx context.Context, entity domain.EntityType, fn func(tx *gorm.DB, ws *writeSet) error) error {
	ws := newWriteSet()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, ws)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			s.metrics.RecordConcurrentModification(ctx, string(entity))
			logger.WithContext(ctx, s.log).Info("write set lost a version race", zap.String("entity", string(entity)), zap.Error(err))
		}
		return err
	}
	s.afterCommit(ctx, ws)
	return nil
}
