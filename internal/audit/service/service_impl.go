package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	auditdomain "github.com/smallbiznis/collabhub/internal/audit/domain"
	"github.com/smallbiznis/collabhub/internal/audit/masking"
	"github.com/smallbiznis/collabhub/internal/clock"
	obscontext "github.com/smallbiznis/collabhub/internal/observability/context"
	"github.com/smallbiznis/collabhub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		return auditdomain.ErrInvalidTarget
	}

	actorType, actorID := resolveActor(ctx)
	log := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   strings.TrimSpace(entry.TargetID),
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		RequestID:  obscontext.RequestIDFromContext(ctx),
		CreatedAt:  s.clock.Now(),
	}
	if masked := masking.MaskJSON(entry.Metadata); masked != nil {
		log.Metadata = datatypes.JSONMap(masked)
	}

	if err := s.repo.Insert(ctx, s.db, &log); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("target_type", targetType),
			zap.String("target_id", log.TargetID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	var cursorID snowflake.ID
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	if cursor != nil {
		cursorID, err = snowflake.ParseString(cursor.ID)
		if err != nil || cursorID == 0 {
			return auditdomain.ListAuditLogResponse{}, pagination.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorType:  req.ActorType,
		Cursor:     cursorID,
		Limit:      limit,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, limit, func(item *auditdomain.AuditLog) string {
		return item.ID.String()
	})
	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: items}, nil
}

func resolveActor(ctx context.Context) (string, *string) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return string(actorcontext.ProfileSystem), nil
	}
	if actor.ID == 0 {
		return string(actor.Type), nil
	}
	id := actor.ID.String()
	return string(actor.Type), &id
}
