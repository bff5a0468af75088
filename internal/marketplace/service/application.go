package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/lifecycle"
	"gorm.io/gorm"
)

func (s *Service) ApplyToCampaign(ctx context.Context, req domain.ApplyRequest) (_ *domain.Application, err error) {
	ctx, span := s.startSpan(ctx, "ApplyToCampaign")
	defer func() { endSpan(span, err) }()

	if req.CampaignID == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectApplication, authorization.ActionApplicationCreate)
	if err != nil {
		return nil, err
	}

	var application *domain.Application
	err = s.inTx(ctx, domain.EntityApplication, func(tx *gorm.DB, ws *writeSet) error {
		campaign, err := s.repo.FindCampaignByID(ctx, tx, req.CampaignID)
		if err != nil {
			return err
		}
		if _, err := s.repo.FindCreatorProfileByID(ctx, tx, actor.ID); err != nil {
			return err
		}

		now := s.clock.Now()
		if res := lifecycle.CheckApplicationCreate(campaign, req.ProposedRate, now); !res.OK {
			for _, v := range res.Violations {
				s.metrics.RecordRuleViolation(ctx, string(domain.EntityApplication), v.Rule)
			}
			return &domain.RuleViolationError{
				Entity:     domain.EntityApplication,
				To:         string(domain.ApplicationStatusPending),
				Violations: res.Violations,
			}
		}

		application = &domain.Application{
			ID:           s.genID.Generate(),
			CampaignID:   campaign.ID,
			CreatorID:    actor.ID,
			BrandID:      campaign.BrandID,
			Status:       domain.ApplicationStatusPending,
			ProposedRate: req.ProposedRate,
			Pitch:        strings.TrimSpace(req.Pitch),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.InsertApplication(ctx, tx, application); err != nil {
			return err
		}

		total := campaign.TotalApplications + 1
		if err := s.repo.UpdateCampaign(ctx, tx, campaign, map[string]any{
			"total_applications": total,
			"updated_at":         now,
		}); err != nil {
			return err
		}

		ws.created(domain.EntityApplication, application.ID, string(application.Status), application.BrandID, application.CreatorID)
		ws.touch(domain.EntityCampaign, campaign.BrandID, 0)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return application, nil
}

// AcceptApplication fills one slot and opens the delivery in the same write
// set. A campaign that reaches capacity closes to new applications when the
// policy asks for it.
func (s *Service) AcceptApplication(ctx context.Context, req domain.AcceptApplicationRequest) (_ *domain.AcceptApplicationResult, err error) {
	ctx, span := s.startSpan(ctx, "AcceptApplication")
	defer func() { endSpan(span, err) }()

	if req.ApplicationID == 0 {
		return nil, domain.ErrInvalidID
	}
	if req.AgreedRate != nil && *req.AgreedRate < 0 {
		return nil, domain.ErrInvalidRate
	}
	actor, err := s.authorize(ctx, authorization.ObjectApplication, authorization.ActionApplicationAccept)
	if err != nil {
		return nil, err
	}

	policy := s.policy.Get()
	orch := s.orchestrator()
	var result *domain.AcceptApplicationResult
	err = s.inTx(ctx, domain.EntityApplication, func(tx *gorm.DB, ws *writeSet) error {
		application, err := s.repo.FindApplicationByID(ctx, tx, req.ApplicationID)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, application.BrandID, 0); err != nil {
			return err
		}
		campaign, err := s.repo.FindCampaignByID(ctx, tx, application.CampaignID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		related := lifecycle.Related{Now: now, Campaign: campaign, Application: application}
		if err := s.validate(ctx, orch, application, string(domain.ApplicationStatusAccepted), related); err != nil {
			return err
		}

		agreed := application.ProposedRate
		if req.AgreedRate != nil {
			agreed = *req.AgreedRate
		}
		if err := s.repo.UpdateApplication(ctx, tx, application, map[string]any{
			"status":      domain.ApplicationStatusAccepted,
			"agreed_rate": agreed,
			"decided_at":  now,
			"updated_at":  now,
		}); err != nil {
			return err
		}
		ws.transition(domain.EntityApplication, application.ID,
			string(application.Status), string(domain.ApplicationStatusAccepted),
			application.BrandID, application.CreatorID, nil)
		application.Status = domain.ApplicationStatusAccepted
		application.AgreedRate = &agreed
		application.DecidedAt = &now
		application.UpdatedAt = now

		campaignFields := map[string]any{
			"slots_filled": campaign.SlotsFilled + 1,
			"updated_at":   now,
		}
		closeCampaign := policy.AutoCloseWhenFull &&
			campaign.Status == domain.CampaignStatusActive &&
			campaign.SlotsFilled+1 >= campaign.SlotsTotal &&
			orch.ValidateTransition(campaign, string(domain.CampaignStatusApplicationsClosed), related) == nil
		if closeCampaign {
			campaignFields["status"] = domain.CampaignStatusApplicationsClosed
			campaignFields["closed_reason"] = domain.CampaignClosedCapacityReached
		}
		if err := s.repo.UpdateCampaign(ctx, tx, campaign, campaignFields); err != nil {
			return err
		}
		campaign.SlotsFilled++
		campaign.UpdatedAt = now
		if closeCampaign {
			ws.transition(domain.EntityCampaign, campaign.ID,
				string(campaign.Status), string(domain.CampaignStatusApplicationsClosed),
				campaign.BrandID, 0, map[string]any{"reason": domain.CampaignClosedCapacityReached})
			campaign.Status = domain.CampaignStatusApplicationsClosed
			campaign.ClosedReason = domain.CampaignClosedCapacityReached
		} else {
			ws.touch(domain.EntityCampaign, campaign.BrandID, 0)
		}

		delivery := &domain.Delivery{
			ID:            s.genID.Generate(),
			ApplicationID: application.ID,
			CampaignID:    campaign.ID,
			CreatorID:     application.CreatorID,
			BrandID:       application.BrandID,
			Status:        domain.DeliveryStatusPending,
			Deadline:      deliveryDeadline(campaign, now, policy.DeliveryWindowDays),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.InsertDelivery(ctx, tx, delivery); err != nil {
			return err
		}
		ws.created(domain.EntityDelivery, delivery.ID, string(delivery.Status), delivery.BrandID, delivery.CreatorID)

		result = &domain.AcceptApplicationResult{Application: application, Campaign: campaign, Delivery: delivery}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// deliveryDeadline prefers the campaign deadline and falls back to the
// configured window from acceptance.
func deliveryDeadline(campaign *domain.Campaign, now time.Time, windowDays int) *time.Time {
	if campaign.Deadline != nil {
		d := *campaign.Deadline
		return &d
	}
	if windowDays <= 0 {
		return nil
	}
	d := now.AddDate(0, 0, windowDays)
	return &d
}

func (s *Service) RejectApplication(ctx context.Context, id snowflake.ID) (_ *domain.Application, err error) {
	ctx, span := s.startSpan(ctx, "RejectApplication")
	defer func() { endSpan(span, err) }()

	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectApplication, authorization.ActionApplicationReject)
	if err != nil {
		return nil, err
	}

	orch := s.orchestrator()
	var application *domain.Application
	err = s.inTx(ctx, domain.EntityApplication, func(tx *gorm.DB, ws *writeSet) error {
		found, err := s.repo.FindApplicationByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, found.BrandID, 0); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := s.validate(ctx, orch, found, string(domain.ApplicationStatusRejected), lifecycle.Related{Now: now}); err != nil {
			return err
		}
		if err := s.repo.UpdateApplication(ctx, tx, found, map[string]any{
			"status":     domain.ApplicationStatusRejected,
			"decided_at": now,
			"updated_at": now,
		}); err != nil {
			return err
		}
		ws.transition(domain.EntityApplication, found.ID,
			string(found.Status), string(domain.ApplicationStatusRejected),
			found.BrandID, found.CreatorID, nil)
		found.Status = domain.ApplicationStatusRejected
		found.DecidedAt = &now
		found.UpdatedAt = now
		application = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return application, nil
}

// WithdrawApplication releases the slot of an accepted application and
// closes its untouched delivery. A campaign that closed itself on reaching
// capacity reopens with the freed slot while applications are still due.
func (s *Service) WithdrawApplication(ctx context.Context, id snowflake.ID) (_ *domain.Application, err error) {
	ctx, span := s.startSpan(ctx, "WithdrawApplication")
	defer func() { endSpan(span, err) }()

	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectApplication, authorization.ActionApplicationWithdraw)
	if err != nil {
		return nil, err
	}

	policy := s.policy.Get()
	orch := s.orchestrator()
	var application *domain.Application
	err = s.inTx(ctx, domain.EntityApplication, func(tx *gorm.DB, ws *writeSet) error {
		found, err := s.repo.FindApplicationByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, 0, found.CreatorID); err != nil {
			return err
		}

		now := s.clock.Now()
		related := lifecycle.Related{Now: now, Application: found}
		wasAccepted := found.Status == domain.ApplicationStatusAccepted
		if wasAccepted {
			delivery, err := s.repo.FindDeliveryByApplicationID(ctx, tx, found.ID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			related.Delivery = delivery
		}
		if err := s.validate(ctx, orch, found, string(domain.ApplicationStatusWithdrawn), related); err != nil {
			return err
		}
		if related.Delivery != nil {
			if err := s.validate(ctx, orch, related.Delivery, string(domain.DeliveryStatusClosed), related); err != nil {
				return err
			}
		}

		if err := s.repo.UpdateApplication(ctx, tx, found, map[string]any{
			"status":       domain.ApplicationStatusWithdrawn,
			"withdrawn_at": now,
			"updated_at":   now,
		}); err != nil {
			return err
		}
		ws.transition(domain.EntityApplication, found.ID,
			string(found.Status), string(domain.ApplicationStatusWithdrawn),
			found.BrandID, found.CreatorID, nil)
		found.Status = domain.ApplicationStatusWithdrawn
		found.WithdrawnAt = &now
		found.UpdatedAt = now

		if wasAccepted {
			campaign, err := s.repo.FindCampaignByID(ctx, tx, found.CampaignID)
			if err != nil {
				return err
			}
			campaignFields := map[string]any{
				"slots_filled": campaign.SlotsFilled - 1,
				"updated_at":   now,
			}
			reopen := policy.AutoCloseWhenFull &&
				campaign.Status == domain.CampaignStatusApplicationsClosed &&
				campaign.ClosedReason == domain.CampaignClosedCapacityReached &&
				(campaign.ApplicationDeadline == nil || now.Before(*campaign.ApplicationDeadline)) &&
				orch.ValidateTransition(campaign, string(domain.CampaignStatusActive), lifecycle.Related{Now: now, Campaign: campaign}) == nil
			if reopen {
				campaignFields["status"] = domain.CampaignStatusActive
				campaignFields["closed_reason"] = ""
			}
			if err := s.repo.UpdateCampaign(ctx, tx, campaign, campaignFields); err != nil {
				return err
			}
			if reopen {
				ws.transition(domain.EntityCampaign, campaign.ID,
					string(campaign.Status), string(domain.CampaignStatusActive),
					campaign.BrandID, 0, map[string]any{"reason": domain.CampaignReopenedSlotReleased})
			} else {
				ws.touch(domain.EntityCampaign, campaign.BrandID, 0)
			}
		}

		if delivery := related.Delivery; delivery != nil {
			if err := s.repo.UpdateDelivery(ctx, tx, delivery, map[string]any{
				"status":     domain.DeliveryStatusClosed,
				"updated_at": now,
			}); err != nil {
				return err
			}
			ws.transition(domain.EntityDelivery, delivery.ID,
				string(delivery.Status), string(domain.DeliveryStatusClosed),
				delivery.BrandID, delivery.CreatorID, map[string]any{"reason": "application_withdrawn"})
		}

		application = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return application, nil
}
