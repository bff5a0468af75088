package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/clock"
	"github.com/smallbiznis/collabhub/internal/config"
	"github.com/smallbiznis/collabhub/internal/marketplace/consistency"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/repository"
	"github.com/smallbiznis/collabhub/internal/marketplace/service"
	"github.com/smallbiznis/collabhub/internal/migration"
	obsmetrics "github.com/smallbiznis/collabhub/internal/observability/metrics"
	"github.com/smallbiznis/collabhub/internal/ratelimit"
	schedtesting "github.com/smallbiznis/collabhub/internal/scheduler/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const brandID = 1001

var start = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	db       *gorm.DB
	clock    *clock.FakeClock
	svc      *service.Service
	sched    *Scheduler
	registry *prometheus.Registry
}

func newFixture(t *testing.T, policy config.LifecyclePolicy, locker *ratelimit.Locker) *fixture {
	t.Helper()
	registry := useRegistry(t)

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fake := clock.NewFakeClock(start)
	enforcer, err := authorization.NewInMemoryEnforcer()
	require.NoError(t, err)
	holder := config.NewStaticPolicyHolder(policy)

	svc := service.NewService(service.Params{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Repo:   repository.Provide(),
		Authz:  authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		Policy: holder,
	})
	sched, err := New(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		Marketplace: svc,
		Reconciler:  svc,
		Repo:        repository.Provide(),
		Policy:      holder,
		GenID:       node,
		Clock:       fake,
		Locker:      locker,
		Config:      Config{BatchSize: 2},
	})
	require.NoError(t, err)

	return &fixture{t: t, db: conn, clock: fake, svc: svc, sched: sched, registry: registry}
}

// useRegistry points the scheduler metrics singleton at a fresh registry for
// the duration of the test.
func useRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "collabhub", Environment: "test"})
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	})
	return registry
}

func brandCtx() context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{Type: actorcontext.ProfileBrand, ID: brandID})
}

func (f *fixture) campaign(applicationWindow time.Duration) *domain.Campaign {
	f.t.Helper()
	deadline := start.AddDate(0, 1, 0)
	appDeadline := start.Add(applicationWindow)
	c, err := f.svc.CreateCampaign(brandCtx(), domain.CreateCampaignRequest{
		Title:               "Autumn drop",
		SlotsTotal:          3,
		Deadline:            &deadline,
		ApplicationDeadline: &appDeadline,
	})
	require.NoError(f.t, err)
	c, err = f.svc.ActivateCampaign(brandCtx(), c.ID)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) status(id snowflake.ID) domain.CampaignStatus {
	f.t.Helper()
	c, err := repository.Provide().FindCampaignByID(context.Background(), f.db, id)
	require.NoError(f.t, err)
	return c.Status
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := useRegistry(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(start)}
	err = s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, metricValue(t, registry, "collabhub_scheduler_job_timeouts_total", map[string]string{
		"service": "collabhub", "env": "test", "job": "timeout_job",
	}))
	assert.Equal(t, 1.0, metricValue(t, registry, "collabhub_scheduler_job_errors_total", map[string]string{
		"service": "collabhub", "env": "test", "job": "timeout_job",
		"reason": obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}))
}

func TestCloseApplicationsFollowsTheClock(t *testing.T) {
	f := newFixture(t, config.DefaultLifecyclePolicy(), nil)
	early := f.campaign(24 * time.Hour)
	late := f.campaign(72 * time.Hour)
	ctx := context.Background()

	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, domain.CampaignStatusActive, f.status(early.ID))
	assert.Equal(t, domain.CampaignStatusActive, f.status(late.ID))

	f.clock.Advance(48 * time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, domain.CampaignStatusApplicationsClosed, f.status(early.ID))
	assert.Equal(t, domain.CampaignStatusActive, f.status(late.ID))

	f.clock.Advance(48 * time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, domain.CampaignStatusApplicationsClosed, f.status(late.ID))

	assert.Equal(t, 2.0, metricValue(t, f.registry, "collabhub_scheduler_batch_processed_total", map[string]string{
		"service": "collabhub", "env": "test", "job": JobCloseApplications, "resource": "campaign",
	}))
}

func TestCloseApplicationsPagesThroughBatches(t *testing.T) {
	f := newFixture(t, config.DefaultLifecyclePolicy(), nil)
	var ids []snowflake.ID
	for i := 0; i < 5; i++ {
		ids = append(ids, f.campaign(time.Hour).ID)
	}
	paused, err := f.svc.PauseCampaign(brandCtx(), ids[0])
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.sched.CloseApplicationsJob(context.Background()))

	assert.Equal(t, domain.CampaignStatusPaused, f.status(paused.ID))
	for _, id := range ids[1:] {
		assert.Equal(t, domain.CampaignStatusApplicationsClosed, f.status(id))
	}
}

func TestCloseApplicationsWithAcceleratedDeadline(t *testing.T) {
	f := newFixture(t, config.DefaultLifecyclePolicy(), nil)
	c := f.campaign(30 * 24 * time.Hour)
	ctx := context.Background()

	require.NoError(t, schedtesting.NewTimeAccelerator(f.db).ExpireApplicationWindow(ctx, c.ID, f.clock.Now()))
	require.NoError(t, f.sched.CloseApplicationsJob(ctx))
	assert.Equal(t, domain.CampaignStatusApplicationsClosed, f.status(c.ID))
}

func TestJobSkippedWhileLockHeldElsewhere(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := ratelimit.NewLocker(client)

	f := newFixture(t, config.DefaultLifecyclePolicy(), locker)
	f.sched.cfg.EnabledJobs = []string{JobCloseApplications}
	c := f.campaign(time.Hour)
	f.clock.Advance(2 * time.Hour)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, lockKeyPrefix+JobCloseApplications, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, domain.CampaignStatusActive, f.status(c.ID))
	assert.Equal(t, 1.0, metricValue(t, f.registry, "collabhub_scheduler_batch_deferred_total", map[string]string{
		"service": "collabhub", "env": "test", "job": JobCloseApplications,
		"reason": obsmetrics.SchedulerBatchDeferredReasonLockHeld,
	}))

	require.NoError(t, locker.Release(ctx, lockKeyPrefix+JobCloseApplications, token))
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.Equal(t, domain.CampaignStatusApplicationsClosed, f.status(c.ID))
	assert.False(t, mr.Exists(lockKeyPrefix+JobCloseApplications), "lock released after the run")
}

func TestReconcileJobPublishesDriftAndRepairs(t *testing.T) {
	policy := config.DefaultLifecyclePolicy()
	policy.RepairDrift = true
	f := newFixture(t, policy, nil)
	f.sched.cfg.EnabledJobs = []string{JobReconcile}
	c := f.campaign(24 * time.Hour)

	require.NoError(t, f.db.Exec("UPDATE campaigns SET total_applications = 4 WHERE id = ?", int64(c.ID)).Error)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	assert.Equal(t, 1.0, metricValue(t, f.registry, "collabhub_consistency_drift", map[string]string{
		"service": "collabhub", "env": "test", "check": consistency.CheckTotalApplications,
	}))
	assert.Equal(t, 1.0, metricValue(t, f.registry, "collabhub_consistency_repairs_total", map[string]string{
		"service": "collabhub", "env": "test", "resource": consistency.CheckTotalApplications,
	}))

	stored, err := repository.Provide().FindCampaignByID(context.Background(), f.db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.TotalApplications)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, 0.0, metricValue(t, f.registry, "collabhub_consistency_drift", map[string]string{
		"service": "collabhub", "env": "test", "check": consistency.CheckTotalApplications,
	}))
}

func TestReconcileJobReportOnlyLeavesRecords(t *testing.T) {
	f := newFixture(t, config.DefaultLifecyclePolicy(), nil)
	f.sched.cfg.EnabledJobs = []string{JobReconcile}
	c := f.campaign(24 * time.Hour)
	require.NoError(t, f.db.Exec("UPDATE campaigns SET total_applications = 4 WHERE id = ?", int64(c.ID)).Error)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	stored, err := repository.Provide().FindCampaignByID(context.Background(), f.db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.TotalApplications)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProvideConfigParsesJobList(t *testing.T) {
	cfg := ProvideConfig(config.Config{SchedulerInterval: 5 * time.Second, SchedulerJobs: " reconcile, ,close_applications"})
	assert.Equal(t, 5*time.Second, cfg.RunInterval)
	assert.Equal(t, []string{"reconcile", "close_applications"}, cfg.EnabledJobs)
	assert.Equal(t, DefaultConfig().BatchSize, cfg.BatchSize)
}

func metricValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if !labelsMatch(m, labels) {
				continue
			}
			switch {
			case m.Counter != nil:
				return m.GetCounter().GetValue()
			case m.Gauge != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
