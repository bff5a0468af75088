package authorization

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	auditdomain "github.com/smallbiznis/collabhub/internal/audit/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type auditMock struct {
	mock.Mock
}

func (m *auditMock) Record(ctx context.Context, entry auditdomain.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *auditMock) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(auditdomain.ListAuditLogResponse), args.Error(1)
}

func newTestService(t *testing.T, audit auditdomain.Service) Service {
	t.Helper()
	enforcer, err := NewInMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer, AuditSvc: audit})
}

func asActor(profile actorcontext.ProfileType, id int64) context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{Type: profile, ID: snowflake.ID(id)})
}

func TestAuthorizeRoleMatrix(t *testing.T) {
	svc := newTestService(t, nil)
	cases := []struct {
		profile actorcontext.ProfileType
		object  string
		action  string
		allowed bool
	}{
		{actorcontext.ProfileBrand, ObjectCampaign, ActionCampaignCreate, true},
		{actorcontext.ProfileCreator, ObjectCampaign, ActionCampaignCreate, false},
		{actorcontext.ProfileCreator, ObjectApplication, ActionApplicationCreate, true},
		{actorcontext.ProfileBrand, ObjectApplication, ActionApplicationCreate, false},
		{actorcontext.ProfileBrand, ObjectApplication, ActionApplicationAccept, true},
		{actorcontext.ProfileCreator, ObjectDelivery, ActionDeliverySubmit, true},
		{actorcontext.ProfileBrand, ObjectDelivery, ActionDeliveryContest, true},
		{actorcontext.ProfileBrand, ObjectDispute, ActionDisputeResolve, false},
		{actorcontext.ProfileArbitrator, ObjectDispute, ActionDisputeResolve, true},
		{actorcontext.ProfileArbitrator, ObjectCampaign, ActionCampaignCancel, false},
		{actorcontext.ProfileSystem, ObjectCampaign, ActionCampaignCloseApplications, true},
		{actorcontext.ProfileSystem, ObjectConsistency, ActionConsistencyReconcile, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.profile)+"/"+tc.action, func(t *testing.T) {
			actor, err := svc.Authorize(asActor(tc.profile, 7), tc.object, tc.action)
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, tc.profile, actor.Type)
				return
			}
			assert.ErrorIs(t, err, domain.ErrForbidden)
		})
	}
}

func TestAuthorizeMissingActor(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Authorize(context.Background(), ObjectCampaign, ActionCampaignView)
	assert.ErrorIs(t, err, domain.ErrMissingActor)

	_, err = svc.Authorize(asActor(actorcontext.ProfileBrand, 0), ObjectCampaign, ActionCampaignView)
	assert.ErrorIs(t, err, domain.ErrMissingActor)

	_, err = svc.Authorize(asActor("admin", 1), ObjectCampaign, ActionCampaignView)
	assert.ErrorIs(t, err, domain.ErrMissingActor)

	ctx := actorcontext.WithActor(context.Background(), actorcontext.System())
	_, err = svc.Authorize(ctx, ObjectCampaign, ActionCampaignView)
	assert.NoError(t, err)
}

func TestAuthorizeDeniedIsAudited(t *testing.T) {
	audit := &auditMock{}
	audit.On("Record", mock.Anything, mock.MatchedBy(func(e auditdomain.Entry) bool {
		return e.Action == auditdomain.ActionDenied && e.TargetType == ObjectDispute && e.Metadata["action"] == ActionDisputeResolve
	})).Return(nil).Once()

	svc := newTestService(t, audit)
	_, err := svc.Authorize(asActor(actorcontext.ProfileCreator, 3), ObjectDispute, ActionDisputeResolve)

	assert.ErrorIs(t, err, domain.ErrForbidden)
	audit.AssertExpectations(t)
}
