package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	auditdomain "github.com/smallbiznis/collabhub/internal/audit/domain"
	"github.com/smallbiznis/collabhub/internal/cache"
	"github.com/smallbiznis/collabhub/internal/jobs"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/observability/logger"
	"go.uber.org/zap"
)

// change is one committed record write.
type change struct {
	action    string
	entity    domain.EntityType
	id        snowflake.ID
	from      string
	to        string
	brandID   snowflake.ID
	creatorID snowflake.ID
	metadata  map[string]any
}

// writeSet collects what a transaction wrote so side effects run once, after commit.
type writeSet struct {
	changes []change
	keys    []cache.Key
	seen    map[cache.Key]struct{}
}

func newWriteSet() *writeSet {
	return &writeSet{seen: map[cache.Key]struct{}{}}
}

func (w *writeSet) transition(entity domain.EntityType, id snowflake.ID, from, to string, brandID, creatorID snowflake.ID, metadata map[string]any) {
	w.changes = append(w.changes, change{
		action:    auditdomain.ActionTransition,
		entity:    entity,
		id:        id,
		from:      from,
		to:        to,
		brandID:   brandID,
		creatorID: creatorID,
		metadata:  metadata,
	})
	w.touch(entity, brandID, creatorID)
}

func (w *writeSet) created(entity domain.EntityType, id snowflake.ID, status string, brandID, creatorID snowflake.ID) {
	w.changes = append(w.changes, change{
		action:    auditdomain.ActionCreate,
		entity:    entity,
		id:        id,
		to:        status,
		brandID:   brandID,
		creatorID: creatorID,
	})
	w.touch(entity, brandID, creatorID)
}

func (w *writeSet) repaired(entity domain.EntityType, id snowflake.ID, brandID, creatorID snowflake.ID, metadata map[string]any) {
	w.changes = append(w.changes, change{
		action:    auditdomain.ActionReconcile,
		entity:    entity,
		id:        id,
		brandID:   brandID,
		creatorID: creatorID,
		metadata:  metadata,
	})
	w.touch(entity, brandID, creatorID)
}

// touch marks the owning profiles' views of entity stale. Campaigns belong
// to the brand only and creator profiles to the creator only.
func (w *writeSet) touch(entity domain.EntityType, brandID, creatorID snowflake.ID) {
	switch entity {
	case domain.EntityCampaign:
		w.addKey(entity, actorcontext.ProfileBrand, brandID)
	case domain.EntityCreatorProfile:
		w.addKey(entity, actorcontext.ProfileCreator, creatorID)
	default:
		w.addKey(entity, actorcontext.ProfileBrand, brandID)
		w.addKey(entity, actorcontext.ProfileCreator, creatorID)
	}
}

func (w *writeSet) addKey(entity domain.EntityType, profile actorcontext.ProfileType, id snowflake.ID) {
	if id == 0 {
		return
	}
	key := profileKey(entity, profile, id)
	if _, ok := w.seen[key]; ok {
		return
	}
	w.seen[key] = struct{}{}
	w.keys = append(w.keys, key)
}

func profileKey(entity domain.EntityType, profile actorcontext.ProfileType, id snowflake.ID) cache.Key {
	return cache.Key{Entity: string(entity), ProfileType: string(profile), ProfileID: id.String()}
}

// afterCommit never fails the operation: the write set is already durable.
func (s *Service) afterCommit(ctx context.Context, ws *writeSet) {
	log := logger.WithContext(ctx, s.log)

	if s.cache != nil && len(ws.keys) > 0 {
		if err := s.cache.Invalidate(ctx, ws.keys...); err != nil {
			log.Warn("cache invalidation failed", zap.Int("keys", len(ws.keys)), zap.Error(err))
		}
		for _, key := range ws.keys {
			s.metrics.RecordCacheInvalidation(ctx, key.Entity, key.ProfileType, 1)
		}
	}

	now := s.clock.Now()
	for _, c := range ws.changes {
		if c.action == auditdomain.ActionTransition {
			s.metrics.RecordTransition(ctx, string(c.entity), c.from, c.to)
		}

		if s.auditSvc != nil {
			err := s.auditSvc.Record(ctx, auditdomain.Entry{
				Action:     c.action,
				TargetType: string(c.entity),
				TargetID:   c.id.String(),
				FromStatus: c.from,
				ToStatus:   c.to,
				Metadata:   c.metadata,
			})
			if err != nil {
				log.Warn("audit record failed", zap.String("entity", string(c.entity)), zap.String("id", c.id.String()), zap.Error(err))
			}
		}

		if s.jobs == nil || c.action == auditdomain.ActionReconcile {
			continue
		}
		event := jobs.Event{
			Entity:     string(c.entity),
			EntityID:   c.id,
			FromStatus: c.from,
			ToStatus:   c.to,
			BrandID:    c.brandID,
			CreatorID:  c.creatorID,
			OccurredAt: now,
		}
		for _, name := range []string{jobs.JobNotificationSend, jobs.JobAnalyticsCompute} {
			if err := s.jobs.Invoke(ctx, name, event); err != nil {
				log.Warn("job dispatch failed", zap.String("job", name), zap.String("entity", string(c.entity)), zap.Error(err))
			}
		}
	}
}
