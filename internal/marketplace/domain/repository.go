package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Page selects a keyset page ordered by descending id.
type Page struct {
	// Cursor excludes ids greater than or equal to it when non-zero.
	Cursor snowflake.ID
	// Limit of zero returns every match.
	Limit int
}

type CampaignFilter struct {
	Page
	IDs                       []snowflake.ID
	BrandID                   snowflake.ID
	Statuses                  []CampaignStatus
	ApplicationDeadlineBefore *time.Time
}

type ApplicationFilter struct {
	Page
	IDs         []snowflake.ID
	CampaignIDs []snowflake.ID
	BrandID     snowflake.ID
	CreatorID   snowflake.ID
	Statuses    []ApplicationStatus
}

type DeliveryFilter struct {
	Page
	IDs            []snowflake.ID
	ApplicationIDs []snowflake.ID
	CampaignID     snowflake.ID
	BrandID        snowflake.ID
	CreatorID      snowflake.ID
	Statuses       []DeliveryStatus
}

type DisputeFilter struct {
	Page
	IDs         []snowflake.ID
	DeliveryIDs []snowflake.ID
	BrandID     snowflake.ID
	CreatorID   snowflake.ID
	Statuses    []DisputeStatus
}

// Repository is the store contract for marketplace records. Every method
// runs against the supplied db handle so callers can compose a write set
// inside one transaction.
//
// Find*ByID return a *NotFoundError when the row is absent. Update* apply
// fields only while the row's version still matches the in-memory record,
// returning ErrConcurrentModification when another writer got there first;
// on success the record's Version is advanced.
type Repository interface {
	InsertCampaign(ctx context.Context, db *gorm.DB, campaign *Campaign) error
	InsertApplication(ctx context.Context, db *gorm.DB, application *Application) error
	InsertDelivery(ctx context.Context, db *gorm.DB, delivery *Delivery) error
	InsertDispute(ctx context.Context, db *gorm.DB, dispute *Dispute) error
	InsertCreatorProfile(ctx context.Context, db *gorm.DB, profile *CreatorProfile) error

	FindCampaignByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Campaign, error)
	FindApplicationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Application, error)
	FindDeliveryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Delivery, error)
	FindDeliveryByApplicationID(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) (*Delivery, error)
	FindDisputeByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Dispute, error)
	FindCreatorProfileByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CreatorProfile, error)

	UpdateCampaign(ctx context.Context, db *gorm.DB, campaign *Campaign, fields map[string]any) error
	UpdateApplication(ctx context.Context, db *gorm.DB, application *Application, fields map[string]any) error
	UpdateDelivery(ctx context.Context, db *gorm.DB, delivery *Delivery, fields map[string]any) error
	UpdateDispute(ctx context.Context, db *gorm.DB, dispute *Dispute, fields map[string]any) error
	UpdateCreatorProfile(ctx context.Context, db *gorm.DB, profile *CreatorProfile, fields map[string]any) error

	ListCampaigns(ctx context.Context, db *gorm.DB, filter CampaignFilter) ([]*Campaign, error)
	ListApplications(ctx context.Context, db *gorm.DB, filter ApplicationFilter) ([]*Application, error)
	CountApplications(ctx context.Context, db *gorm.DB, filter ApplicationFilter) (int, error)
	ListDeliveries(ctx context.Context, db *gorm.DB, filter DeliveryFilter) ([]*Delivery, error)
	ListDisputes(ctx context.Context, db *gorm.DB, filter DisputeFilter) ([]*Dispute, error)
	ListCreatorProfiles(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*CreatorProfile, error)
}
