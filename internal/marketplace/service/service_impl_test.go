package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	auditdomain "github.com/smallbiznis/collabhub/internal/audit/domain"
	auditrepository "github.com/smallbiznis/collabhub/internal/audit/repository"
	auditservice "github.com/smallbiznis/collabhub/internal/audit/service"
	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/cache"
	"github.com/smallbiznis/collabhub/internal/clock"
	"github.com/smallbiznis/collabhub/internal/config"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/repository"
	"github.com/smallbiznis/collabhub/internal/migration"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	brandID      = 1001
	otherBrandID = 1002
	creatorID    = 2001
	creator2ID   = 2002
	arbitratorID = 3001
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingStore struct {
	cache.Store
	mu          sync.Mutex
	invalidated []cache.Key
}

func (r *recordingStore) Invalidate(ctx context.Context, keys ...cache.Key) error {
	r.mu.Lock()
	r.invalidated = append(r.invalidated, keys...)
	r.mu.Unlock()
	return r.Store.Invalidate(ctx, keys...)
}

func (r *recordingStore) reset() {
	r.mu.Lock()
	r.invalidated = nil
	r.mu.Unlock()
}

type recordingInvoker struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingInvoker) Invoke(_ context.Context, name string, payload any) error {
	if _, err := json.Marshal(payload); err != nil {
		return err
	}
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
	return nil
}

type harness struct {
	t      *testing.T
	db     *gorm.DB
	clock  *clock.FakeClock
	store  *recordingStore
	jobs   *recordingInvoker
	audit  auditdomain.Service
	authz  authorization.Service
	node   *snowflake.Node
	policy *config.LifecyclePolicyHolder
	svc    *Service
}

func newHarness(t *testing.T, policy config.LifecyclePolicy) *harness {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(testNow)

	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})
	enforcer, err := authorization.NewInMemoryEnforcer()
	require.NoError(t, err)

	h := &harness{
		t:      t,
		db:     conn,
		clock:  fake,
		store:  &recordingStore{Store: cache.NewMemoryStore(fake)},
		jobs:   &recordingInvoker{},
		audit:  audit,
		authz:  authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer, AuditSvc: audit}),
		node:   node,
		policy: config.NewStaticPolicyHolder(policy),
	}
	h.svc = h.service(repository.Provide())
	return h
}

func (h *harness) service(repo domain.Repository) *Service {
	return NewService(Params{
		DB:       h.db,
		Log:      zap.NewNop(),
		GenID:    h.node,
		Clock:    h.clock,
		Repo:     repo,
		Authz:    h.authz,
		Policy:   h.policy,
		AuditSvc: h.audit,
		Cache:    h.store,
		Jobs:     h.jobs,
	})
}

func as(profile actorcontext.ProfileType, id int64) context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{Type: profile, ID: snowflake.ID(id)})
}

func asBrand() context.Context      { return as(actorcontext.ProfileBrand, brandID) }
func asCreator() context.Context    { return as(actorcontext.ProfileCreator, creatorID) }
func asArbitrator() context.Context { return as(actorcontext.ProfileArbitrator, arbitratorID) }
func asSystem() context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.System())
}

func (h *harness) activeCampaign(slots int) *domain.Campaign {
	h.t.Helper()
	deadline := testNow.AddDate(0, 1, 0)
	campaign, err := h.svc.CreateCampaign(asBrand(), domain.CreateCampaignRequest{
		Title:      "Spring Launch",
		SlotsTotal: slots,
		Budget:     500000,
		Deadline:   &deadline,
	})
	require.NoError(h.t, err)
	campaign, err = h.svc.ActivateCampaign(asBrand(), campaign.ID)
	require.NoError(h.t, err)
	return campaign
}

func (h *harness) creator(id int64) {
	h.t.Helper()
	_, err := h.svc.RegisterCreator(as(actorcontext.ProfileCreator, id), domain.RegisterCreatorRequest{DisplayName: "creator"})
	require.NoError(h.t, err)
}

func (h *harness) apply(campaignID snowflake.ID, creator int64) *domain.Application {
	h.t.Helper()
	app, err := h.svc.ApplyToCampaign(as(actorcontext.ProfileCreator, creator), domain.ApplyRequest{
		CampaignID:   campaignID,
		ProposedRate: 1500,
		Pitch:        "short-form video",
	})
	require.NoError(h.t, err)
	return app
}

// acceptedDelivery returns a pending delivery for creatorID on a fresh campaign.
func (h *harness) acceptedDelivery() *domain.Delivery {
	h.t.Helper()
	campaign := h.activeCampaign(2)
	h.creator(creatorID)
	app := h.apply(campaign.ID, creatorID)
	res, err := h.svc.AcceptApplication(asBrand(), domain.AcceptApplicationRequest{ApplicationID: app.ID})
	require.NoError(h.t, err)
	return res.Delivery
}

func (h *harness) submittedDelivery() *domain.Delivery {
	h.t.Helper()
	delivery := h.acceptedDelivery()
	delivery, err := h.svc.SubmitDelivery(asCreator(), domain.SubmitDeliveryRequest{
		DeliveryID: delivery.ID,
		ProofURLs:  []string{"https://cdn.example.com/post/1"},
	})
	require.NoError(h.t, err)
	return delivery
}

func (h *harness) reloadCampaign(id snowflake.ID) *domain.Campaign {
	h.t.Helper()
	c, err := repository.Provide().FindCampaignByID(context.Background(), h.db, id)
	require.NoError(h.t, err)
	return c
}

func (h *harness) reloadApplication(id snowflake.ID) *domain.Application {
	h.t.Helper()
	a, err := repository.Provide().FindApplicationByID(context.Background(), h.db, id)
	require.NoError(h.t, err)
	return a
}

func (h *harness) reloadDelivery(id snowflake.ID) *domain.Delivery {
	h.t.Helper()
	d, err := repository.Provide().FindDeliveryByID(context.Background(), h.db, id)
	require.NoError(h.t, err)
	return d
}

func (h *harness) reloadCreator(id int64) *domain.CreatorProfile {
	h.t.Helper()
	p, err := repository.Provide().FindCreatorProfileByID(context.Background(), h.db, snowflake.ID(id))
	require.NoError(h.t, err)
	return p
}

func (h *harness) disputesFor(deliveryID snowflake.ID) []*domain.Dispute {
	h.t.Helper()
	out, err := repository.Provide().ListDisputes(context.Background(), h.db, domain.DisputeFilter{DeliveryIDs: []snowflake.ID{deliveryID}})
	require.NoError(h.t, err)
	return out
}
