package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"gorm.io/gorm"
)

// RegisterCreator creates the acting creator's profile. The profile shares
// the creator's id.
func (s *Service) RegisterCreator(ctx context.Context, req domain.RegisterCreatorRequest) (_ *domain.CreatorProfile, err error) {
	ctx, span := s.startSpan(ctx, "RegisterCreator")
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, authorization.ObjectCreatorProfile, authorization.ActionCreatorProfileCreate)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, domain.ErrInvalidDisplayName
	}

	now := s.clock.Now()
	profile := &domain.CreatorProfile{
		ID:          actor.ID,
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.inTx(ctx, domain.EntityCreatorProfile, func(tx *gorm.DB, ws *writeSet) error {
		if err := s.repo.InsertCreatorProfile(ctx, tx, profile); err != nil {
			return err
		}
		ws.created(domain.EntityCreatorProfile, profile.ID, "", 0, profile.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
