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
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (s *Service) SubmitDelivery(ctx context.Context, req domain.SubmitDeliveryRequest) (_ *domain.Delivery, err error) {
	ctx, span := s.startSpan(ctx, "SubmitDelivery")
	defer func() { endSpan(span, err) }()

	if req.DeliveryID == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectDelivery, authorization.ActionDeliverySubmit)
	if err != nil {
		return nil, err
	}

	orch := s.orchestrator()
	var delivery *domain.Delivery
	err = s.inTx(ctx, domain.EntityDelivery, func(tx *gorm.DB, ws *writeSet) error {
		found, err := s.repo.FindDeliveryByID(ctx, tx, req.DeliveryID)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, 0, found.CreatorID); err != nil {
			return err
		}

		now := s.clock.Now()
		related := lifecycle.Related{Now: now, Delivery: found, Input: lifecycle.Input{ProofURLs: req.ProofURLs}}
		if err := s.validate(ctx, orch, found, string(domain.DeliveryStatusSubmitted), related); err != nil {
			return err
		}

		proof := []string(found.ProofURLs)
		if req.ProofURLs != nil {
			proof = nonBlank(req.ProofURLs)
		}
		onTime := consistency.OnTime(now, found.Deadline)
		fields := map[string]any{
			"status":       domain.DeliveryStatusSubmitted,
			"proof_urls":   datatypes.JSONSlice[string](proof),
			"submitted_at": now,
			"on_time":      onTime,
			"updated_at":   now,
		}
		if req.ContentURLs != nil {
			fields["content_urls"] = datatypes.JSONSlice[string](nonBlank(req.ContentURLs))
		}
		if err := s.repo.UpdateDelivery(ctx, tx, found, fields); err != nil {
			return err
		}
		ws.transition(domain.EntityDelivery, found.ID,
			string(found.Status), string(domain.DeliveryStatusSubmitted),
			found.BrandID, found.CreatorID, map[string]any{"proof_urls": proof, "on_time": onTime})

		found.Status = domain.DeliveryStatusSubmitted
		found.ProofURLs = proof
		if req.ContentURLs != nil {
			found.ContentURLs = nonBlank(req.ContentURLs)
		}
		found.SubmittedAt = &now
		found.OnTime = &onTime
		found.UpdatedAt = now
		delivery = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// ApproveDelivery completes the application and credits the creator. Any
// dispute still open on the delivery is closed by the brand's approval.
func (s *Service) ApproveDelivery(ctx context.Context, id snowflake.ID) (_ *domain.Delivery, err error) {
	ctx, span := s.startSpan(ctx, "ApproveDelivery")
	defer func() { endSpan(span, err) }()

	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectDelivery, authorization.ActionDeliveryApprove)
	if err != nil {
		return nil, err
	}

	orch := s.orchestrator()
	var delivery *domain.Delivery
	err = s.inTx(ctx, domain.EntityDelivery, func(tx *gorm.DB, ws *writeSet) error {
		found, err := s.repo.FindDeliveryByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, found.BrandID, 0); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := s.validate(ctx, orch, found, string(domain.DeliveryStatusApproved), lifecycle.Related{Now: now, Delivery: found}); err != nil {
			return err
		}

		var open []*domain.Dispute
		if found.Status == domain.DeliveryStatusInDispute {
			open, err = s.repo.ListDisputes(ctx, tx, domain.DisputeFilter{
				DeliveryIDs: []snowflake.ID{found.ID},
				Statuses:    []domain.DisputeStatus{domain.DisputeStatusOpen, domain.DisputeStatusUnderReview},
			})
			if err != nil {
				return err
			}
		}

		if err := s.approveDelivery(ctx, tx, ws, orch, found, now); err != nil {
			return err
		}

		for _, dispute := range open {
			if err := s.closeDispute(ctx, tx, ws, orch, actor, dispute, "approved by brand", now); err != nil {
				return err
			}
		}

		delivery = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// approveDelivery writes delivery -> approved and, unless the application is
// already completed, application -> completed with the creator counter
// increment.
func (s *Service) approveDelivery(ctx context.Context, tx *gorm.DB, ws *writeSet, orch *lifecycle.Orchestrator, delivery *domain.Delivery, now time.Time) error {
	application, err := s.repo.FindApplicationByID(ctx, tx, delivery.ApplicationID)
	if err != nil {
		return err
	}
	completeApplication := application.Status != domain.ApplicationStatusCompleted
	related := lifecycle.Related{Now: now, Application: application, Delivery: delivery}
	if completeApplication {
		if err := s.validate(ctx, orch, application, string(domain.ApplicationStatusCompleted), related); err != nil {
			return err
		}
	}

	if err := s.repo.UpdateDelivery(ctx, tx, delivery, map[string]any{
		"status":      domain.DeliveryStatusApproved,
		"approved_at": now,
		"updated_at":  now,
	}); err != nil {
		return err
	}
	ws.transition(domain.EntityDelivery, delivery.ID,
		string(delivery.Status), string(domain.DeliveryStatusApproved),
		delivery.BrandID, delivery.CreatorID, nil)
	delivery.Status = domain.DeliveryStatusApproved
	delivery.ApprovedAt = &now
	delivery.UpdatedAt = now

	if !completeApplication {
		return nil
	}

	if err := s.repo.UpdateApplication(ctx, tx, application, map[string]any{
		"status":     domain.ApplicationStatusCompleted,
		"updated_at": now,
	}); err != nil {
		return err
	}
	ws.transition(domain.EntityApplication, application.ID,
		string(application.Status), string(domain.ApplicationStatusCompleted),
		application.BrandID, application.CreatorID, nil)

	profile, err := s.repo.FindCreatorProfileByID(ctx, tx, application.CreatorID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateCreatorProfile(ctx, tx, profile, map[string]any{
		"completed_campaigns": profile.CompletedCampaigns + 1,
		"updated_at":          now,
	}); err != nil {
		return err
	}
	ws.touch(domain.EntityCreatorProfile, 0, profile.ID)
	return nil
}

func (s *Service) RequestRevision(ctx context.Context, req domain.RequestRevisionRequest) (_ *domain.Delivery, err error) {
	ctx, span := s.startSpan(ctx, "RequestRevision")
	defer func() { endSpan(span, err) }()

	if req.DeliveryID == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectDelivery, authorization.ActionDeliveryRequestRevision)
	if err != nil {
		return nil, err
	}

	orch := s.orchestrator()
	var delivery *domain.Delivery
	err = s.inTx(ctx, domain.EntityDelivery, func(tx *gorm.DB, ws *writeSet) error {
		found, err := s.repo.FindDeliveryByID(ctx, tx, req.DeliveryID)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, found.BrandID, 0); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := s.validate(ctx, orch, found, string(domain.DeliveryStatusPending), lifecycle.Related{Now: now, Delivery: found}); err != nil {
			return err
		}

		note := strings.TrimSpace(req.Note)
		if err := s.repo.UpdateDelivery(ctx, tx, found, map[string]any{
			"status":        domain.DeliveryStatusPending,
			"revision_note": note,
			"updated_at":    now,
		}); err != nil {
			return err
		}
		ws.transition(domain.EntityDelivery, found.ID,
			string(found.Status), string(domain.DeliveryStatusPending),
			found.BrandID, found.CreatorID, map[string]any{"note": note})
		found.Status = domain.DeliveryStatusPending
		found.RevisionNote = note
		found.UpdatedAt = now
		delivery = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// ContestDelivery moves a submitted delivery through contested into
// in_dispute and opens its single dispute. With reopening enabled an
// approved delivery goes straight to in_dispute.
func (s *Service) ContestDelivery(ctx context.Context, req domain.ContestDeliveryRequest) (_ *domain.ContestDeliveryResult, err error) {
	ctx, span := s.startSpan(ctx, "ContestDelivery")
	defer func() { endSpan(span, err) }()

	if req.DeliveryID == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectDelivery, authorization.ActionDeliveryContest)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(req.Reason)
	orch := s.orchestrator()
	var result *domain.ContestDeliveryResult
	err = s.inTx(ctx, domain.EntityDelivery, func(tx *gorm.DB, ws *writeSet) error {
		found, err := s.repo.FindDeliveryByID(ctx, tx, req.DeliveryID)
		if err != nil {
			return err
		}
		if err := ensureParty(actor, found.BrandID, 0); err != nil {
			return err
		}

		now := s.clock.Now()
		related := lifecycle.Related{Now: now, Delivery: found, Input: lifecycle.Input{ContestReason: reason}}
		path, err := s.contestPath(ctx, orch, found, related)
		if err != nil {
			return err
		}

		if err := s.repo.UpdateDelivery(ctx, tx, found, map[string]any{
			"status":     domain.DeliveryStatusInDispute,
			"updated_at": now,
		}); err != nil {
			return err
		}
		from := found.Status
		for _, to := range path {
			ws.transition(domain.EntityDelivery, found.ID, string(from), string(to),
				found.BrandID, found.CreatorID, map[string]any{"reason": reason})
			from = to
		}
		found.Status = domain.DeliveryStatusInDispute
		found.UpdatedAt = now

		dispute := &domain.Dispute{
			ID:         s.genID.Generate(),
			DeliveryID: found.ID,
			CampaignID: found.CampaignID,
			BrandID:    found.BrandID,
			CreatorID:  found.CreatorID,
			Status:     domain.DisputeStatusOpen,
			Reason:     reason,
			RaisedBy:   raisedBy(actor, found),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := consistency.VerifyDisputeReferences(dispute, found); err != nil {
			return err
		}
		if err := s.repo.InsertDispute(ctx, tx, dispute); err != nil {
			return err
		}
		ws.created(domain.EntityDispute, dispute.ID, string(dispute.Status), dispute.BrandID, dispute.CreatorID)

		result = &domain.ContestDeliveryResult{Delivery: found, Dispute: dispute}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// contestPath validates every hop from the delivery's status to in_dispute
// and returns the hops in order.
func (s *Service) contestPath(ctx context.Context, orch *lifecycle.Orchestrator, delivery *domain.Delivery, related lifecycle.Related) ([]domain.DeliveryStatus, error) {
	if delivery.Status == domain.DeliveryStatusApproved {
		if err := s.validate(ctx, orch, delivery, string(domain.DeliveryStatusInDispute), related); err != nil {
			return nil, err
		}
		// The contested hop is skipped, so its reason rule is applied here.
		if strings.TrimSpace(related.Input.ContestReason) == "" {
			s.metrics.RecordRuleViolation(ctx, string(domain.EntityDelivery), lifecycle.RuleContestReasonRequired)
			return nil, &domain.RuleViolationError{
				Entity: domain.EntityDelivery,
				To:     string(domain.DeliveryStatusInDispute),
				Violations: []domain.Violation{{
					Rule:    lifecycle.RuleContestReasonRequired,
					Field:   "reason",
					Message: "a contest reason is required",
				}},
			}
		}
		return []domain.DeliveryStatus{domain.DeliveryStatusInDispute}, nil
	}

	if err := s.validate(ctx, orch, delivery, string(domain.DeliveryStatusContested), related); err != nil {
		return nil, err
	}
	contested := *delivery
	contested.Status = domain.DeliveryStatusContested
	if err := s.validate(ctx, orch, &contested, string(domain.DeliveryStatusInDispute), related); err != nil {
		return nil, err
	}
	return []domain.DeliveryStatus{domain.DeliveryStatusContested, domain.DeliveryStatusInDispute}, nil
}

func raisedBy(actor actorcontext.Actor, delivery *domain.Delivery) snowflake.ID {
	if actor.ID != 0 {
		return actor.ID
	}
	return delivery.BrandID
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
