package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
	pkgdb "github.com/smallbiznis/collabhub/pkg/db"
	"github.com/smallbiznis/collabhub/pkg/db/option"
	"github.com/smallbiznis/collabhub/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertCampaign(ctx context.Context, db *gorm.DB, campaign *domain.Campaign) error {
	return repository.ProvideStore[domain.Campaign](db).Create(ctx, campaign)
}

func (r *repo) InsertApplication(ctx context.Context, db *gorm.DB, application *domain.Application) error {
	err := repository.ProvideStore[domain.Application](db).Create(ctx, application)
	if pkgdb.IsDuplicateKeyErr(err) {
		return fmt.Errorf("campaign %s creator %s: %w", application.CampaignID, application.CreatorID, domain.ErrDuplicateApplication)
	}
	return err
}

func (r *repo) InsertDelivery(ctx context.Context, db *gorm.DB, delivery *domain.Delivery) error {
	return repository.ProvideStore[domain.Delivery](db).Create(ctx, delivery)
}

func (r *repo) InsertDispute(ctx context.Context, db *gorm.DB, dispute *domain.Dispute) error {
	return repository.ProvideStore[domain.Dispute](db).Create(ctx, dispute)
}

func (r *repo) InsertCreatorProfile(ctx context.Context, db *gorm.DB, profile *domain.CreatorProfile) error {
	err := repository.ProvideStore[domain.CreatorProfile](db).Create(ctx, profile)
	if pkgdb.IsDuplicateKeyErr(err) {
		return fmt.Errorf("creator %s: %w", profile.ID, domain.ErrDuplicateCreator)
	}
	return err
}

func (r *repo) FindCampaignByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Campaign, error) {
	return findByID[domain.Campaign](ctx, db, domain.EntityCampaign, id)
}

func (r *repo) FindApplicationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Application, error) {
	return findByID[domain.Application](ctx, db, domain.EntityApplication, id)
}

func (r *repo) FindDeliveryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Delivery, error) {
	return findByID[domain.Delivery](ctx, db, domain.EntityDelivery, id)
}

func (r *repo) FindDeliveryByApplicationID(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) (*domain.Delivery, error) {
	delivery, err := repository.ProvideStore[domain.Delivery](db).FindOne(ctx, nil,
		option.WithWhere("application_id = ?", applicationID))
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, &domain.NotFoundError{Entity: domain.EntityDelivery, ID: "application:" + applicationID.String()}
	}
	return delivery, nil
}

func (r *repo) FindDisputeByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Dispute, error) {
	return findByID[domain.Dispute](ctx, db, domain.EntityDispute, id)
}

func (r *repo) FindCreatorProfileByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CreatorProfile, error) {
	return findByID[domain.CreatorProfile](ctx, db, domain.EntityCreatorProfile, id)
}

func (r *repo) UpdateCampaign(ctx context.Context, db *gorm.DB, campaign *domain.Campaign, fields map[string]any) error {
	if err := updateVersioned[domain.Campaign](ctx, db, domain.EntityCampaign, campaign.ID, campaign.Version, fields); err != nil {
		return err
	}
	campaign.Version++
	return nil
}

func (r *repo) UpdateApplication(ctx context.Context, db *gorm.DB, application *domain.Application, fields map[string]any) error {
	if err := updateVersioned[domain.Application](ctx, db, domain.EntityApplication, application.ID, application.Version, fields); err != nil {
		return err
	}
	application.Version++
	return nil
}

func (r *repo) UpdateDelivery(ctx context.Context, db *gorm.DB, delivery *domain.Delivery, fields map[string]any) error {
	if err := updateVersioned[domain.Delivery](ctx, db, domain.EntityDelivery, delivery.ID, delivery.Version, fields); err != nil {
		return err
	}
	delivery.Version++
	return nil
}

func (r *repo) UpdateDispute(ctx context.Context, db *gorm.DB, dispute *domain.Dispute, fields map[string]any) error {
	if err := updateVersioned[domain.Dispute](ctx, db, domain.EntityDispute, dispute.ID, dispute.Version, fields); err != nil {
		return err
	}
	dispute.Version++
	return nil
}

func (r *repo) UpdateCreatorProfile(ctx context.Context, db *gorm.DB, profile *domain.CreatorProfile, fields map[string]any) error {
	if err := updateVersioned[domain.CreatorProfile](ctx, db, domain.EntityCreatorProfile, profile.ID, profile.Version, fields); err != nil {
		return err
	}
	profile.Version++
	return nil
}

func (r *repo) ListCampaigns(ctx context.Context, db *gorm.DB, filter domain.CampaignFilter) ([]*domain.Campaign, error) {
	opts := pageOptions(filter.Page)
	if filter.IDs != nil {
		opts = append(opts, option.WithIn("id", filter.IDs))
	}
	if filter.BrandID != 0 {
		opts = append(opts, option.WithWhere("brand_id = ?", filter.BrandID))
	}
	if filter.Statuses != nil {
		opts = append(opts, option.WithIn("status", filter.Statuses))
	}
	if filter.ApplicationDeadlineBefore != nil {
		opts = append(opts, option.WithWhere(
			"application_deadline IS NOT NULL AND application_deadline < ?", *filter.ApplicationDeadlineBefore))
	}
	return repository.ProvideStore[domain.Campaign](db).Find(ctx, nil, opts...)
}

func (r *repo) ListApplications(ctx context.Context, db *gorm.DB, filter domain.ApplicationFilter) ([]*domain.Application, error) {
	opts := append(pageOptions(filter.Page), applicationFilterOptions(filter)...)
	return repository.ProvideStore[domain.Application](db).Find(ctx, nil, opts...)
}

// CountApplications ignores the filter's page.
func (r *repo) CountApplications(ctx context.Context, db *gorm.DB, filter domain.ApplicationFilter) (int, error) {
	n, err := repository.ProvideStore[domain.Application](db).Count(ctx, nil, applicationFilterOptions(filter)...)
	return int(n), err
}

func applicationFilterOptions(filter domain.ApplicationFilter) []option.QueryOption {
	var opts []option.QueryOption
	if filter.IDs != nil {
		opts = append(opts, option.WithIn("id", filter.IDs))
	}
	if filter.CampaignIDs != nil {
		opts = append(opts, option.WithIn("campaign_id", filter.CampaignIDs))
	}
	if filter.BrandID != 0 {
		opts = append(opts, option.WithWhere("brand_id = ?", filter.BrandID))
	}
	if filter.CreatorID != 0 {
		opts = append(opts, option.WithWhere("creator_id = ?", filter.CreatorID))
	}
	if filter.Statuses != nil {
		opts = append(opts, option.WithIn("status", filter.Statuses))
	}
	return opts
}

func (r *repo) ListDeliveries(ctx context.Context, db *gorm.DB, filter domain.DeliveryFilter) ([]*domain.Delivery, error) {
	opts := pageOptions(filter.Page)
	if filter.IDs != nil {
		opts = append(opts, option.WithIn("id", filter.IDs))
	}
	if filter.ApplicationIDs != nil {
		opts = append(opts, option.WithIn("application_id", filter.ApplicationIDs))
	}
	if filter.CampaignID != 0 {
		opts = append(opts, option.WithWhere("campaign_id = ?", filter.CampaignID))
	}
	if filter.BrandID != 0 {
		opts = append(opts, option.WithWhere("brand_id = ?", filter.BrandID))
	}
	if filter.CreatorID != 0 {
		opts = append(opts, option.WithWhere("creator_id = ?", filter.CreatorID))
	}
	if filter.Statuses != nil {
		opts = append(opts, option.WithIn("status", filter.Statuses))
	}
	return repository.ProvideStore[domain.Delivery](db).Find(ctx, nil, opts...)
}

func (r *repo) ListDisputes(ctx context.Context, db *gorm.DB, filter domain.DisputeFilter) ([]*domain.Dispute, error) {
	opts := pageOptions(filter.Page)
	if filter.IDs != nil {
		opts = append(opts, option.WithIn("id", filter.IDs))
	}
	if filter.DeliveryIDs != nil {
		opts = append(opts, option.WithIn("delivery_id", filter.DeliveryIDs))
	}
	if filter.BrandID != 0 {
		opts = append(opts, option.WithWhere("brand_id = ?", filter.BrandID))
	}
	if filter.CreatorID != 0 {
		opts = append(opts, option.WithWhere("creator_id = ?", filter.CreatorID))
	}
	if filter.Statuses != nil {
		opts = append(opts, option.WithIn("status", filter.Statuses))
	}
	return repository.ProvideStore[domain.Dispute](db).Find(ctx, nil, opts...)
}

func (r *repo) ListCreatorProfiles(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.CreatorProfile, error) {
	opts := pageOptions(domain.Page{})
	if ids != nil {
		opts = append(opts, option.WithIn("id", ids))
	}
	return repository.ProvideStore[domain.CreatorProfile](db).Find(ctx, nil, opts...)
}

func findByID[T any](ctx context.Context, db *gorm.DB, entity domain.EntityType, id snowflake.ID) (*T, error) {
	record, err := repository.ProvideStore[T](db).FindOne(ctx, nil, option.WithWhere("id = ?", id))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &domain.NotFoundError{Entity: entity, ID: id.String()}
	}
	return record, nil
}

// updateVersioned distinguishes a lost race from a vanished row when no row
// matched the expected version.
func updateVersioned[T any](ctx context.Context, db *gorm.DB, entity domain.EntityType, id snowflake.ID, version int64, fields map[string]any) error {
	store := repository.ProvideStore[T](db)
	affected, err := store.UpdateVersioned(ctx, id, version, fields)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	exists, err := store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Entity: entity, ID: id.String()}
	}
	return fmt.Errorf("%s %s at version %d: %w", entity, id, version, domain.ErrConcurrentModification)
}

// pageOptions orders by descending id so snowflake ids double as a keyset cursor.
func pageOptions(page domain.Page) []option.QueryOption {
	opts := []option.QueryOption{
		option.ApplySortBy(option.SortBy{Field: "id", Direction: option.Desc}),
	}
	if page.Cursor != 0 {
		opts = append(opts, option.WithWhere("id < ?", page.Cursor))
	}
	if page.Limit > 0 {
		opts = append(opts, option.WithLimit(page.Limit))
	}
	return opts
}
