package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/lifecycle"
	"gorm.io/gorm"
)

func (s *Service) CreateCampaign(ctx context.Context, req domain.CreateCampaignRequest) (_ *domain.Campaign, err error) {
	ctx, span := s.startSpan(ctx, "CreateCampaign")
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, authorization.ObjectCampaign, authorization.ActionCampaignCreate)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	if req.SlotsTotal < 0 {
		return nil, domain.ErrInvalidSlots
	}
	if req.Budget < 0 {
		return nil, domain.ErrInvalidBudget
	}
	if req.Deadline != nil && req.ApplicationDeadline != nil && req.ApplicationDeadline.After(*req.Deadline) {
		return nil, domain.ErrInvalidDeadline
	}

	now := s.clock.Now()
	campaign := &domain.Campaign{
		ID:                  s.genID.Generate(),
		BrandID:             actor.ID,
		Title:               title,
		Slug:                slug.Make(title),
		Description:         strings.TrimSpace(req.Description),
		Status:              domain.CampaignStatusDraft,
		SlotsTotal:          req.SlotsTotal,
		Budget:              req.Budget,
		Deadline:            utcPtr(req.Deadline),
		ApplicationDeadline: utcPtr(req.ApplicationDeadline),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err = s.inTx(ctx, domain.EntityCampaign, func(tx *gorm.DB, ws *writeSet) error {
		if err := s.repo.InsertCampaign(ctx, tx, campaign); err != nil {
			return err
		}
		ws.created(domain.EntityCampaign, campaign.ID, string(campaign.Status), campaign.BrandID, 0)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

// TransitionCampaign moves a campaign to target using the action that
// target implies.
func (s *Service) TransitionCampaign(ctx context.Context, id snowflake.ID, target domain.CampaignStatus) (*domain.Campaign, error) {
	action, ok := campaignActions[target]
	if !ok {
		return nil, &domain.InvalidStateError{Entity: domain.EntityCampaign, Status: string(target)}
	}
	return s.transitionCampaign(ctx, id, target, action, "")
}

var campaignActions = map[domain.CampaignStatus]string{
	domain.CampaignStatusDraft:              authorization.ActionCampaignReturnToDraft,
	domain.CampaignStatusUnderReview:        authorization.ActionCampaignSubmitReview,
	domain.CampaignStatusActive:             authorization.ActionCampaignActivate,
	domain.CampaignStatusPaused:             authorization.ActionCampaignPause,
	domain.CampaignStatusApplicationsClosed: authorization.ActionCampaignCloseApplications,
	domain.CampaignStatusCompleted:          authorization.ActionCampaignComplete,
	domain.CampaignStatusCancelled:          authorization.ActionCampaignCancel,
}

func (s *Service) SubmitCampaignForReview(ctx context.Context, id snowflake.ID) (*domain.Campaign, error) {
	return s.transitionCampaign(ctx, id, domain.CampaignStatusUnderReview, authorization.ActionCampaignSubmitReview, "")
}

func (s *Service) ActivateCampaign(ctx context.Context, id snowflake.ID) (*domain.Campaign, error) {
	return s.transitionCampaign(ctx, id, domain.CampaignStatusActive, authorization.ActionCampaignActivate, "")
}

func (s *Service) PauseCampaign(ctx context.Context, id snowflake.ID) (*domain.Campaign, error) {
	return s.transitionCampaign(ctx, id, domain.CampaignStatusPaused, authorization.ActionCampaignPause, "")
}

// ResumeCampaign only reactivates a paused campaign.
func (s *Service) ResumeCampaign(ctx context.Context, id snowflake.ID) (*domain.Campaign, error) {
	return s.transitionCampaign(ctx, id, domain.CampaignStatusActive, authorization.ActionCampaignResume, domain.CampaignStatusPaused)
}

func (s *Service) CloseApplications(ctx context.Context, id snowflake.ID) (*domain.Campaign, error) {
	return s.transitionCampaign(ctx, id, domain.CampaignStatusApplicationsClosed, authorization.ActionCampaignCloseApplications, "")
}

func (s *Service) CompleteCampaign(ctx context.Context, id snowflake.ID) (*domain.Campaign, error) {
	return s.transitionCampaign(ctx, id, domain.CampaignStatusCompleted, authorization.ActionCampaignComplete, "")
}

func (s *Service) CancelCampaign(ctx context.Context, id snowflake.ID) (*domain.Campaign, error) {
	return s.transitionCampaign(ctx, id, domain.CampaignStatusCancelled, authorization.ActionCampaignCancel, "")
}

func (s *Service) transitionCampaign(ctx context.Context, id snowflake.ID, target domain.CampaignStatus, action string, requireFrom domain.CampaignStatus) (_ *domain.Campaign, err error) {
	ctx, span := s.startSpan(ctx, "TransitionCampaign")
	defer func() { endSpan(span, err) }()

	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectCampaign, action)
	if err != nil {
		return nil, err
	}

	orch := s.orchestrator()
	var campaign *domain.Campaign
	err = s.inTx(ctx, domain.EntityCampaign, func(tx *gorm.DB, ws *writeSet) error {
		found, err := s.repo.FindCampaignByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, found.BrandID, 0); err != nil {
			return err
		}
		if requireFrom != "" && found.Status != requireFrom {
			return &domain.IllegalTransitionError{Entity: domain.EntityCampaign, From: string(found.Status), To: string(target)}
		}

		now := s.clock.Now()
		if err := s.validate(ctx, orch, found, string(target), lifecycle.Related{Now: now, Campaign: found}); err != nil {
			return err
		}

		from := found.Status
		if err := s.repo.UpdateCampaign(ctx, tx, found, map[string]any{
			"status":        target,
			"closed_reason": "",
			"updated_at":    now,
		}); err != nil {
			return err
		}
		found.Status = target
		found.ClosedReason = ""
		found.UpdatedAt = now
		ws.transition(domain.EntityCampaign, found.ID, string(from), string(target), found.BrandID, 0, nil)
		campaign = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return campaign, nil
}
