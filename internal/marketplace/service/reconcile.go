package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/marketplace/consistency"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/internal/observability/logger"
	pkgdb "github.com/smallbiznis/collabhub/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const entityReconcile domain.EntityType = "reconcile"

// Reconcile verifies every derived counter against the records it is
// derived from. With repair set, each drifted counter is recomputed inside
// the repair transaction after its own row is read, and written under the
// usual version check; the returned report describes the snapshot.
func (s *Service) Reconcile(ctx context.Context, repair bool) (_ consistency.Report, err error) {
	ctx, span := s.startSpan(ctx, "Reconcile")
	defer func() { endSpan(span, err) }()

	if _, err := s.authorize(ctx, authorization.ObjectConsistency, authorization.ActionConsistencyReconcile); err != nil {
		return consistency.Report{}, err
	}

	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return consistency.Report{}, err
	}
	report := s.engine.Run(snapshot)

	log := logger.WithContext(ctx, s.log)
	drifted := report.Drifted()
	if len(drifted) == 0 {
		log.Debug("consistency check clean", zap.Int("checks", len(report.Results)))
		return report, nil
	}
	log.Warn("consistency drift detected", zap.Int("drifted", len(drifted)), zap.Any("by_check", report.DriftByCheck()))

	if !repair {
		return report, nil
	}
	plan := consistency.PlanRepairs(snapshot)
	if plan.Empty() {
		return report, nil
	}
	if err := s.applyRepairs(ctx, plan); err != nil {
		return report, err
	}
	log.Info("consistency drift repaired",
		zap.Int("campaigns", len(plan.Campaigns)),
		zap.Int("creators", len(plan.Creators)),
		zap.Int("deliveries", len(plan.Deliveries)),
	)
	return report, nil
}

func (s *Service) loadSnapshot(ctx context.Context) (consistency.Snapshot, error) {
	var snapshot consistency.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if snapshot.Campaigns, err = s.repo.ListCampaigns(ctx, tx, domain.CampaignFilter{}); err != nil {
			return err
		}
		if snapshot.Applications, err = s.repo.ListApplications(ctx, tx, domain.ApplicationFilter{}); err != nil {
			return err
		}
		if snapshot.Deliveries, err = s.repo.ListDeliveries(ctx, tx, domain.DeliveryFilter{}); err != nil {
			return err
		}
		if snapshot.Disputes, err = s.repo.ListDisputes(ctx, tx, domain.DisputeFilter{}); err != nil {
			return err
		}
		snapshot.Creators, err = s.repo.ListCreatorProfiles(ctx, tx, nil)
		return err
	}, pkgdb.SnapshotTxOptions(s.db))
	return snapshot, err
}

// applyRepairs treats the plan as a list of suspects only. Each subject row
// is re-read before the records it summarizes, so any writer committing in
// between bumps the version and the update fails instead of writing a
// counter derived from older rows.
func (s *Service) applyRepairs(ctx context.Context, plan consistency.RepairPlan) error {
	return s.inTx(ctx, entityReconcile, func(tx *gorm.DB, ws *writeSet) error {
		now := s.clock.Now()
		for _, r := range plan.Campaigns {
			c, err := s.repo.FindCampaignByID(ctx, tx, r.Campaign.ID)
			if err != nil {
				return err
			}
			filled, err := s.repo.CountApplications(ctx, tx, domain.ApplicationFilter{
				CampaignIDs: []snowflake.ID{c.ID},
				Statuses:    domain.SlotHoldingStatuses,
			})
			if err != nil {
				return err
			}
			total, err := s.repo.CountApplications(ctx, tx, domain.ApplicationFilter{CampaignIDs: []snowflake.ID{c.ID}})
			if err != nil {
				return err
			}
			if filled == c.SlotsFilled && total == c.TotalApplications {
				continue
			}
			meta := map[string]any{
				"slots_filled":       map[string]any{"from": c.SlotsFilled, "to": filled},
				"total_applications": map[string]any{"from": c.TotalApplications, "to": total},
			}
			if err := s.repo.UpdateCampaign(ctx, tx, c, map[string]any{
				"slots_filled":       filled,
				"total_applications": total,
				"updated_at":         now,
			}); err != nil {
				return err
			}
			ws.repaired(domain.EntityCampaign, c.ID, c.BrandID, 0, meta)
		}
		for _, r := range plan.Creators {
			p, err := s.repo.FindCreatorProfileByID(ctx, tx, r.Creator.ID)
			if err != nil {
				return err
			}
			completed, err := s.repo.CountApplications(ctx, tx, domain.ApplicationFilter{
				CreatorID: p.ID,
				Statuses:  []domain.ApplicationStatus{domain.ApplicationStatusCompleted},
			})
			if err != nil {
				return err
			}
			if completed == p.CompletedCampaigns {
				continue
			}
			meta := map[string]any{"completed_campaigns": map[string]any{"from": p.CompletedCampaigns, "to": completed}}
			if err := s.repo.UpdateCreatorProfile(ctx, tx, p, map[string]any{
				"completed_campaigns": completed,
				"updated_at":          now,
			}); err != nil {
				return err
			}
			ws.repaired(domain.EntityCreatorProfile, p.ID, 0, p.ID, meta)
		}
		for _, r := range plan.Deliveries {
			d, err := s.repo.FindDeliveryByID(ctx, tx, r.Delivery.ID)
			if err != nil {
				return err
			}
			if consistency.CheckDeliveryOnTime(d).Valid {
				continue
			}
			var onTime *bool
			if d.SubmittedAt != nil {
				v := consistency.OnTime(*d.SubmittedAt, d.Deadline)
				onTime = &v
			}
			if err := s.repo.UpdateDelivery(ctx, tx, d, map[string]any{
				"on_time":    onTime,
				"updated_at": now,
			}); err != nil {
				return err
			}
			ws.repaired(domain.EntityDelivery, d.ID, d.BrandID, d.CreatorID, map[string]any{"on_time": onTime})
		}
		return nil
	})
}
