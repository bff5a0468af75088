// Package authorization decides which profile type may perform which
// marketplace action. Record ownership is checked by the caller.
package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	auditdomain "github.com/smallbiznis/collabhub/internal/audit/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Service interface {
	// Authorize returns the acting profile when its role may perform action
	// on object.
	Authorize(ctx context.Context, object, action string) (actorcontext.Actor, error)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer persists policies in the casbin_rule table.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	return newEnforcer(adapter)
}

// NewInMemoryEnforcer seeds the default policies without a backing store.
func NewInMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	return newEnforcer(nil)
}

func newEnforcer(adapter persist.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}
	if adapter != nil {
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, object, action string) (actorcontext.Actor, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok || !actor.Type.Valid() {
		return actorcontext.Actor{}, domain.ErrMissingActor
	}
	if actor.ID == 0 && actor.Type != actorcontext.ProfileSystem {
		return actorcontext.Actor{}, domain.ErrMissingActor
	}

	object = strings.TrimSpace(object)
	action = strings.TrimSpace(action)
	allowed, err := s.enforcer.Enforce(roleFor(actor.Type), object, action)
	if err != nil {
		return actorcontext.Actor{}, err
	}
	if !allowed {
		s.auditDenied(ctx, actor, object, action)
		return actorcontext.Actor{}, domain.ErrForbidden
	}
	return actor, nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor actorcontext.Actor, object, action string) {
	s.log.Info("authorization denied",
		zap.String("profile_type", string(actor.Type)),
		zap.String("object", object),
		zap.String("action", action),
	)
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionDenied,
		TargetType: object,
		Metadata: map[string]any{
			"action": action,
			"role":   roleFor(actor.Type),
		},
	})
}

func roleFor(profile actorcontext.ProfileType) string {
	return "role:" + string(profile)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, policy := range defaultPolicies() {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
