package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/marketplace/consistency"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/marketplace/lifecycle"
	"gorm.io/gorm"
)

func (s *Service) ReviewDispute(ctx context.Context, id snowflake.ID) (_ *domain.Dispute, err error) {
	ctx, span := s.startSpan(ctx, "ReviewDispute")
	defer func() { endSpan(span, err) }()

	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectDispute, authorization.ActionDisputeReview)
	if err != nil {
		return nil, err
	}

	orch := s.orchestrator()
	var dispute *domain.Dispute
	err = s.inTx(ctx, domain.EntityDispute, func(tx *gorm.DB, ws *writeSet) error {
		found, err := s.repo.FindDisputeByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, found.BrandID, found.CreatorID); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := s.validate(ctx, orch, found, string(domain.DisputeStatusUnderReview), lifecycle.Related{Now: now}); err != nil {
			return err
		}
		if err := s.repo.UpdateDispute(ctx, tx, found, map[string]any{
			"status":     domain.DisputeStatusUnderReview,
			"updated_at": now,
		}); err != nil {
			return err
		}
		ws.transition(domain.EntityDispute, found.ID,
			string(found.Status), string(domain.DisputeStatusUnderReview),
			found.BrandID, found.CreatorID, nil)
		found.Status = domain.DisputeStatusUnderReview
		found.UpdatedAt = now
		dispute = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// ResolveDispute records the ruling and settles the delivery: approved for
// the creator, closed for the brand.
func (s *Service) ResolveDispute(ctx context.Context, req domain.ResolveDisputeRequest) (_ *domain.Dispute, err error) {
	ctx, span := s.startSpan(ctx, "ResolveDispute")
	defer func() { endSpan(span, err) }()

	if req.DisputeID == 0 {
		return nil, domain.ErrInvalidID
	}
	target, ok := req.Outcome.Status()
	if !ok {
		return nil, domain.ErrInvalidOutcome
	}
	actor, err := s.authorize(ctx, authorization.ObjectDispute, authorization.ActionDisputeResolve)
	if err != nil {
		return nil, err
	}

	resolution := strings.TrimSpace(req.Resolution)
	orch := s.orchestrator()
	var dispute *domain.Dispute
	err = s.inTx(ctx, domain.EntityDispute, func(tx *gorm.DB, ws *writeSet) error {
		found, err := s.repo.FindDisputeByID(ctx, tx, req.DisputeID)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, found.BrandID, found.CreatorID); err != nil {
			return err
		}
		delivery, err := s.repo.FindDeliveryByID(ctx, tx, found.DeliveryID)
		if err != nil {
			return err
		}
		if err := consistency.VerifyDisputeReferences(found, delivery); err != nil {
			return err
		}

		now := s.clock.Now()
		related := lifecycle.Related{Now: now, Delivery: delivery, Input: lifecycle.Input{Resolution: resolution}}
		if err := s.validate(ctx, orch, found, string(target), related); err != nil {
			return err
		}

		switch target {
		case domain.DisputeStatusResolvedCreatorFavor:
			if err := s.validate(ctx, orch, delivery, string(domain.DeliveryStatusApproved), related); err != nil {
				return err
			}
		case domain.DisputeStatusResolvedBrandFavor:
			if err := s.validate(ctx, orch, delivery, string(domain.DeliveryStatusClosed), related); err != nil {
				return err
			}
		}

		resolvedBy := actor.ID
		fields := map[string]any{
			"status":      target,
			"resolution":  resolution,
			"resolved_at": now,
			"updated_at":  now,
		}
		if resolvedBy != 0 {
			fields["resolved_by"] = resolvedBy
		}
		if err := s.repo.UpdateDispute(ctx, tx, found, fields); err != nil {
			return err
		}
		ws.transition(domain.EntityDispute, found.ID, string(found.Status), string(target),
			found.BrandID, found.CreatorID, map[string]any{"outcome": string(req.Outcome)})
		found.Status = target
		found.Resolution = resolution
		found.ResolvedAt = &now
		if resolvedBy != 0 {
			found.ResolvedBy = &resolvedBy
		}
		found.UpdatedAt = now

		switch target {
		case domain.DisputeStatusResolvedCreatorFavor:
			if err := s.approveDelivery(ctx, tx, ws, orch, delivery, now); err != nil {
				return err
			}
		case domain.DisputeStatusResolvedBrandFavor:
			if err := s.repo.UpdateDelivery(ctx, tx, delivery, map[string]any{
				"status":     domain.DeliveryStatusClosed,
				"updated_at": now,
			}); err != nil {
				return err
			}
			ws.transition(domain.EntityDelivery, delivery.ID,
				string(delivery.Status), string(domain.DeliveryStatusClosed),
				delivery.BrandID, delivery.CreatorID, nil)
		}

		dispute = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// CloseDispute ends a dispute. One closed without a ruling hands its
// delivery back as resolved.
func (s *Service) CloseDispute(ctx context.Context, req domain.CloseDisputeRequest) (_ *domain.Dispute, err error) {
	ctx, span := s.startSpan(ctx, "CloseDispute")
	defer func() { endSpan(span, err) }()

	if req.DisputeID == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectDispute, authorization.ActionDisputeClose)
	if err != nil {
		return nil, err
	}

	note := strings.TrimSpace(req.Note)
	orch := s.orchestrator()
	var dispute *domain.Dispute
	err = s.inTx(ctx, domain.EntityDispute, func(tx *gorm.DB, ws *writeSet) error {
		found, err := s.repo.FindDisputeByID(ctx, tx, req.DisputeID)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, found.BrandID, 0); err != nil {
			return err
		}

		now := s.clock.Now()
		withdrawn := !found.Status.IsResolution()
		var delivery *domain.Delivery
		if withdrawn {
			delivery, err = s.repo.FindDeliveryByID(ctx, tx, found.DeliveryID)
			if err != nil {
				return err
			}
			if err := consistency.VerifyDisputeReferences(found, delivery); err != nil {
				return err
			}
		}

		if err := s.closeDispute(ctx, tx, ws, orch, actor, found, note, now); err != nil {
			return err
		}

		if delivery != nil {
			if err := s.validate(ctx, orch, delivery, string(domain.DeliveryStatusResolved), lifecycle.Related{Now: now, Delivery: delivery}); err != nil {
				return err
			}
			if err := s.repo.UpdateDelivery(ctx, tx, delivery, map[string]any{
				"status":     domain.DeliveryStatusResolved,
				"updated_at": now,
			}); err != nil {
				return err
			}
			ws.transition(domain.EntityDelivery, delivery.ID,
				string(delivery.Status), string(domain.DeliveryStatusResolved),
				delivery.BrandID, delivery.CreatorID, nil)
		}

		dispute = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// closeDispute writes dispute -> closed, keeping any earlier resolution text
// when note is empty.
func (s *Service) closeDispute(ctx context.Context, tx *gorm.DB, ws *writeSet, orch *lifecycle.Orchestrator, actor actorcontext.Actor, dispute *domain.Dispute, note string, now time.Time) error {
	if err := s.validate(ctx, orch, dispute, string(domain.DisputeStatusClosed), lifecycle.Related{Now: now}); err != nil {
		return err
	}

	fields := map[string]any{
		"status":     domain.DisputeStatusClosed,
		"updated_at": now,
	}
	if note != "" {
		fields["resolution"] = note
	}
	if dispute.ResolvedAt == nil {
		fields["resolved_at"] = now
		if actor.ID != 0 {
			fields["resolved_by"] = actor.ID
		}
	}
	if err := s.repo.UpdateDispute(ctx, tx, dispute, fields); err != nil {
		return err
	}
	ws.transition(domain.EntityDispute, dispute.ID,
		string(dispute.Status), string(domain.DisputeStatusClosed),
		dispute.BrandID, dispute.CreatorID, nil)

	dispute.Status = domain.DisputeStatusClosed
	dispute.UpdatedAt = now
	if note != "" {
		dispute.Resolution = note
	}
	if dispute.ResolvedAt == nil {
		dispute.ResolvedAt = &now
		if actor.ID != 0 {
			id := actor.ID
			dispute.ResolvedBy = &id
		}
	}
	return nil
}
