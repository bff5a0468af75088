package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/actorcontext"
	"github.com/smallbiznis/collabhub/internal/authorization"
	"github.com/smallbiznis/collabhub/internal/cache"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	"github.com/smallbiznis/collabhub/pkg/db/pagination"
)

// creatorVisibleCampaigns are the campaign statuses a creator may browse.
var creatorVisibleCampaigns = []domain.CampaignStatus{
	domain.CampaignStatusActive,
	domain.CampaignStatusPaused,
	domain.CampaignStatusApplicationsClosed,
	domain.CampaignStatusCompleted,
}

// viewKey returns the cache key for views the actor owns. Only owners are
// cached because writes invalidate owner keys only.
func viewKey(entity domain.EntityType, actor actorcontext.Actor) cache.Key {
	switch actor.Type {
	case actorcontext.ProfileBrand:
		if entity == domain.EntityCreatorProfile {
			return cache.Key{}
		}
	case actorcontext.ProfileCreator:
		if entity == domain.EntityCampaign {
			return cache.Key{}
		}
	default:
		return cache.Key{}
	}
	return profileKey(entity, actor.Type, actor.ID)
}

func (s *Service) cacheTTL() time.Duration {
	return s.policy.Get().CacheTTL
}

func canViewCampaign(actor actorcontext.Actor, c *domain.Campaign) bool {
	switch actor.Type {
	case actorcontext.ProfileBrand:
		return c.BrandID == actor.ID
	case actorcontext.ProfileCreator:
		return slices.Contains(creatorVisibleCampaigns, c.Status)
	default:
		return true
	}
}

func (s *Service) GetCampaign(ctx context.Context, id snowflake.ID) (_ *domain.Campaign, err error) {
	ctx, span := s.startSpan(ctx, "GetCampaign")
	defer func() { endSpan(span, err) }()

	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectCampaign, authorization.ActionCampaignView)
	if err != nil {
		return nil, err
	}
	return cache.GetOrLoad(ctx, s.cache, viewKey(domain.EntityCampaign, actor), "get:"+id.String(), s.cacheTTL(),
		func(ctx context.Context) (*domain.Campaign, error) {
			campaign, err := s.repo.FindCampaignByID(ctx, s.db, id)
			if err != nil {
				return nil, err
			}
			if !canViewCampaign(actor, campaign) {
				return nil, domain.ErrForbidden
			}
			return campaign, nil
		})
}

func (s *Service) GetApplication(ctx context.Context, id snowflake.ID) (_ *domain.Application, err error) {
	ctx, span := s.startSpan(ctx, "GetApplication")
	defer func() { endSpan(span, err) }()

	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectApplication, authorization.ActionApplicationView)
	if err != nil {
		return nil, err
	}
	return cache.GetOrLoad(ctx, s.cache, viewKey(domain.EntityApplication, actor), "get:"+id.String(), s.cacheTTL(),
		func(ctx context.Context) (*domain.Application, error) {
			application, err := s.repo.FindApplicationByID(ctx, s.db, id)
			if err != nil {
				return nil, err
			}
			if err := ensureParty(actor, application.BrandID, application.CreatorID); err != nil {
				return nil, err
			}
			return application, nil
		})
}

func (s *Service) GetDelivery(ctx context.Context, id snowflake.ID) (_ *domain.Delivery, err error) {
	ctx, span := s.startSpan(ctx, "GetDelivery")
	defer func() { endSpan(span, err) }()

	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectDelivery, authorization.ActionDeliveryView)
	if err != nil {
		return nil, err
	}
	return cache.GetOrLoad(ctx, s.cache, viewKey(domain.EntityDelivery, actor), "get:"+id.String(), s.cacheTTL(),
		func(ctx context.Context) (*domain.Delivery, error) {
			delivery, err := s.repo.FindDeliveryByID(ctx, s.db, id)
			if err != nil {
				return nil, err
			}
			if err := ensureParty(actor, delivery.BrandID, delivery.CreatorID); err != nil {
				return nil, err
			}
			return delivery, nil
		})
}

func (s *Service) GetDispute(ctx context.Context, id snowflake.ID) (_ *domain.Dispute, err error) {
	ctx, span := s.startSpan(ctx, "GetDispute")
	defer func() { endSpan(span, err) }()

	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectDispute, authorization.ActionDisputeView)
	if err != nil {
		return nil, err
	}
	return cache.GetOrLoad(ctx, s.cache, viewKey(domain.EntityDispute, actor), "get:"+id.String(), s.cacheTTL(),
		func(ctx context.Context) (*domain.Dispute, error) {
			dispute, err := s.repo.FindDisputeByID(ctx, s.db, id)
			if err != nil {
				return nil, err
			}
			if err := ensureParty(actor, dispute.BrandID, dispute.CreatorID); err != nil {
				return nil, err
			}
			return dispute, nil
		})
}

func (s *Service) GetCreatorProfile(ctx context.Context, id snowflake.ID) (_ *domain.CreatorProfile, err error) {
	ctx, span := s.startSpan(ctx, "GetCreatorProfile")
	defer func() { endSpan(span, err) }()

	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.authorize(ctx, authorization.ObjectCreatorProfile, authorization.ActionCreatorProfileView)
	if err != nil {
		return nil, err
	}
	key := cache.Key{}
	if actor.Type == actorcontext.ProfileCreator && actor.ID == id {
		key = viewKey(domain.EntityCreatorProfile, actor)
	}
	return cache.GetOrLoad(ctx, s.cache, key, "get:"+id.String(), s.cacheTTL(),
		func(ctx context.Context) (*domain.CreatorProfile, error) {
			return s.repo.FindCreatorProfileByID(ctx, s.db, id)
		})
}

func (s *Service) ListCampaigns(ctx context.Context, req domain.ListRequest) (_ domain.ListCampaignsResponse, err error) {
	ctx, span := s.startSpan(ctx, "ListCampaigns")
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, authorization.ObjectCampaign, authorization.ActionCampaignView)
	if err != nil {
		return domain.ListCampaignsResponse{}, err
	}
	page, limit, err := pageFrom(req.Pagination)
	if err != nil {
		return domain.ListCampaignsResponse{}, err
	}
	if err := s.checkStatus(domain.EntityCampaign, req.Status); err != nil {
		return domain.ListCampaignsResponse{}, err
	}

	filter := domain.CampaignFilter{Page: page}
	if req.Status != "" {
		filter.Statuses = []domain.CampaignStatus{domain.CampaignStatus(req.Status)}
	}
	switch actor.Type {
	case actorcontext.ProfileBrand:
		filter.BrandID = actor.ID
	case actorcontext.ProfileCreator:
		if len(filter.Statuses) == 0 {
			filter.Statuses = creatorVisibleCampaigns
		} else if !slices.Contains(creatorVisibleCampaigns, filter.Statuses[0]) {
			return domain.ListCampaignsResponse{Campaigns: []*domain.Campaign{}}, nil
		}
	}

	return cache.GetOrLoad(ctx, s.cache, viewKey(domain.EntityCampaign, actor), listField(req), s.cacheTTL(),
		func(ctx context.Context) (domain.ListCampaignsResponse, error) {
			items, err := s.repo.ListCampaigns(ctx, s.db, filter)
			if err != nil {
				return domain.ListCampaignsResponse{}, err
			}
			items, info := pagination.BuildCursorPageInfo(items, limit, func(c *domain.Campaign) string { return c.ID.String() })
			return domain.ListCampaignsResponse{PageInfo: info, Campaigns: items}, nil
		})
}

func (s *Service) ListApplications(ctx context.Context, req domain.ListRequest) (_ domain.ListApplicationsResponse, err error) {
	ctx, span := s.startSpan(ctx, "ListApplications")
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, authorization.ObjectApplication, authorization.ActionApplicationView)
	if err != nil {
		return domain.ListApplicationsResponse{}, err
	}
	page, limit, err := pageFrom(req.Pagination)
	if err != nil {
		return domain.ListApplicationsResponse{}, err
	}
	if err := s.checkStatus(domain.EntityApplication, req.Status); err != nil {
		return domain.ListApplicationsResponse{}, err
	}

	filter := domain.ApplicationFilter{Page: page}
	if req.Status != "" {
		filter.Statuses = []domain.ApplicationStatus{domain.ApplicationStatus(req.Status)}
	}
	if req.CampaignID != 0 {
		filter.CampaignIDs = []snowflake.ID{req.CampaignID}
	}
	switch actor.Type {
	case actorcontext.ProfileBrand:
		filter.BrandID = actor.ID
	case actorcontext.ProfileCreator:
		filter.CreatorID = actor.ID
	}

	return cache.GetOrLoad(ctx, s.cache, viewKey(domain.EntityApplication, actor), listField(req), s.cacheTTL(),
		func(ctx context.Context) (domain.ListApplicationsResponse, error) {
			items, err := s.repo.ListApplications(ctx, s.db, filter)
			if err != nil {
				return domain.ListApplicationsResponse{}, err
			}
			items, info := pagination.BuildCursorPageInfo(items, limit, func(a *domain.Application) string { return a.ID.String() })
			return domain.ListApplicationsResponse{PageInfo: info, Applications: items}, nil
		})
}

func (s *Service) ListDeliveries(ctx context.Context, req domain.ListRequest) (_ domain.ListDeliveriesResponse, err error) {
	ctx, span := s.startSpan(ctx, "ListDeliveries")
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, authorization.ObjectDelivery, authorization.ActionDeliveryView)
	if err != nil {
		return domain.ListDeliveriesResponse{}, err
	}
	page, limit, err := pageFrom(req.Pagination)
	if err != nil {
		return domain.ListDeliveriesResponse{}, err
	}
	if err := s.checkStatus(domain.EntityDelivery, req.Status); err != nil {
		return domain.ListDeliveriesResponse{}, err
	}

	filter := domain.DeliveryFilter{Page: page, CampaignID: req.CampaignID}
	if req.Status != "" {
		filter.Statuses = []domain.DeliveryStatus{domain.DeliveryStatus(req.Status)}
	}
	switch actor.Type {
	case actorcontext.ProfileBrand:
		filter.BrandID = actor.ID
	case actorcontext.ProfileCreator:
		filter.CreatorID = actor.ID
	}

	return cache.GetOrLoad(ctx, s.cache, viewKey(domain.EntityDelivery, actor), listField(req), s.cacheTTL(),
		func(ctx context.Context) (domain.ListDeliveriesResponse, error) {
			items, err := s.repo.ListDeliveries(ctx, s.db, filter)
			if err != nil {
				return domain.ListDeliveriesResponse{}, err
			}
			items, info := pagination.BuildCursorPageInfo(items, limit, func(d *domain.Delivery) string { return d.ID.String() })
			return domain.ListDeliveriesResponse{PageInfo: info, Deliveries: items}, nil
		})
}

func (s *Service) ListDisputes(ctx context.Context, req domain.ListRequest) (_ domain.ListDisputesResponse, err error) {
	ctx, span := s.startSpan(ctx, "ListDisputes")
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, authorization.ObjectDispute, authorization.ActionDisputeView)
	if err != nil {
		return domain.ListDisputesResponse{}, err
	}
	page, limit, err := pageFrom(req.Pagination)
	if err != nil {
		return domain.ListDisputesResponse{}, err
	}
	if err := s.checkStatus(domain.EntityDispute, req.Status); err != nil {
		return domain.ListDisputesResponse{}, err
	}

	filter := domain.DisputeFilter{Page: page}
	if req.Status != "" {
		filter.Statuses = []domain.DisputeStatus{domain.DisputeStatus(req.Status)}
	}
	switch actor.Type {
	case actorcontext.ProfileBrand:
		filter.BrandID = actor.ID
	case actorcontext.ProfileCreator:
		filter.CreatorID = actor.ID
	}

	return cache.GetOrLoad(ctx, s.cache, viewKey(domain.EntityDispute, actor), listField(req), s.cacheTTL(),
		func(ctx context.Context) (domain.ListDisputesResponse, error) {
			items, err := s.repo.ListDisputes(ctx, s.db, filter)
			if err != nil {
				return domain.ListDisputesResponse{}, err
			}
			items, info := pagination.BuildCursorPageInfo(items, limit, func(d *domain.Dispute) string { return d.ID.String() })
			return domain.ListDisputesResponse{PageInfo: info, Disputes: items}, nil
		})
}

// checkStatus rejects a status filter the entity's table does not know.
func (s *Service) checkStatus(entity domain.EntityType, status string) error {
	if status == "" {
		return nil
	}
	if !slices.Contains(s.orchestrator().Table().Statuses(entity), status) {
		return &domain.InvalidStateError{Entity: entity, Status: status}
	}
	return nil
}

// pageFrom decodes the page token and asks the store for one extra row so
// the page builder can tell whether more remain.
func pageFrom(p pagination.Pagination) (domain.Page, int, error) {
	limit := p.Limit()
	page := domain.Page{Limit: limit + 1}
	cursor, err := pagination.DecodeCursor(p.PageToken)
	if err != nil {
		return domain.Page{}, 0, err
	}
	if cursor != nil {
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil || id == 0 {
			return domain.Page{}, 0, pagination.ErrInvalidPageToken
		}
		page.Cursor = id
	}
	return page, limit, nil
}

func listField(req domain.ListRequest) string {
	return fmt.Sprintf("list:%s:%d:%s:%d", req.Status, req.CampaignID, req.PageToken, req.Limit())
}
