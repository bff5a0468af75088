// Package domain contains the marketplace records, their statuses and the
// error taxonomy shared by the lifecycle and service layers.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Campaign is a brand-authored work order with a slot capacity.
type Campaign struct {
	ID                  snowflake.ID   `gorm:"primaryKey" json:"id"`
	BrandID             snowflake.ID   `gorm:"not null;index" json:"brand_id"`
	Title               string         `gorm:"type:text;not null" json:"title"`
	Slug                string         `gorm:"type:text;not null;index" json:"slug"`
	Description         string         `gorm:"type:text" json:"description,omitempty"`
	Status              CampaignStatus `gorm:"type:text;not null;index" json:"status"`
	SlotsTotal          int            `gorm:"not null" json:"slots_total"`
	SlotsFilled         int            `gorm:"not null" json:"slots_filled"`
	TotalApplications   int            `gorm:"not null" json:"total_applications"`
	Budget              int64          `gorm:"not null" json:"budget"`
	Deadline            *time.Time     `json:"deadline,omitempty"`
	ApplicationDeadline *time.Time     `json:"application_deadline,omitempty"`
	// ClosedReason is set only while the campaign sits in
	// applications_closed because it filled up.
	ClosedReason string    `gorm:"type:text" json:"closed_reason,omitempty"`
	Version      int64     `gorm:"not null" json:"version"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

const (
	CampaignClosedCapacityReached = "capacity_reached"
	CampaignReopenedSlotReleased  = "slot_released"
)

func (Campaign) TableName() string { return "campaigns" }

func (c *Campaign) EntityType() EntityType { return EntityCampaign }

func (c *Campaign) CurrentStatus() string {
	if c == nil {
		return ""
	}
	return string(c.Status)
}

// Application is a creator's bid for one campaign slot. BrandID is
// denormalized from the campaign for query locality.
type Application struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	CampaignID   snowflake.ID      `gorm:"not null;uniqueIndex:ux_applications_campaign_creator" json:"campaign_id"`
	CreatorID    snowflake.ID      `gorm:"not null;uniqueIndex:ux_applications_campaign_creator;index" json:"creator_id"`
	BrandID      snowflake.ID      `gorm:"not null;index" json:"brand_id"`
	Status       ApplicationStatus `gorm:"type:text;not null;index" json:"status"`
	ProposedRate int64             `gorm:"not null" json:"proposed_rate"`
	AgreedRate   *int64            `json:"agreed_rate,omitempty"`
	Pitch        string            `gorm:"type:text" json:"pitch,omitempty"`
	DecidedAt    *time.Time        `json:"decided_at,omitempty"`
	WithdrawnAt  *time.Time        `json:"withdrawn_at,omitempty"`
	Version      int64             `gorm:"not null" json:"version"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`
}

func (Application) TableName() string { return "applications" }

func (a *Application) EntityType() EntityType { return EntityApplication }

func (a *Application) CurrentStatus() string {
	if a == nil {
		return ""
	}
	return string(a.Status)
}

// Delivery tracks the fulfillment obligation created when an application is accepted.
type Delivery struct {
	ID            snowflake.ID                `gorm:"primaryKey" json:"id"`
	ApplicationID snowflake.ID                `gorm:"not null;uniqueIndex" json:"application_id"`
	CampaignID    snowflake.ID                `gorm:"not null;index" json:"campaign_id"`
	CreatorID     snowflake.ID                `gorm:"not null;index" json:"creator_id"`
	BrandID       snowflake.ID                `gorm:"not null;index" json:"brand_id"`
	Status        DeliveryStatus              `gorm:"type:text;not null;index" json:"status"`
	ProofURLs     datatypes.JSONSlice[string] `json:"proof_urls"`
	ContentURLs   datatypes.JSONSlice[string] `json:"content_urls"`
	Deadline      *time.Time                  `json:"deadline,omitempty"`
	SubmittedAt   *time.Time                  `json:"submitted_at,omitempty"`
	OnTime        *bool                       `json:"on_time,omitempty"`
	ApprovedAt    *time.Time                  `json:"approved_at,omitempty"`
	RevisionNote  string                      `gorm:"type:text" json:"revision_note,omitempty"`
	Version       int64                       `gorm:"not null" json:"version"`
	CreatedAt     time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Delivery) TableName() string { return "deliveries" }

func (d *Delivery) EntityType() EntityType { return EntityDelivery }

func (d *Delivery) CurrentStatus() string {
	if d == nil {
		return ""
	}
	return string(d.Status)
}

// Dispute escalates a contested delivery to an arbitrator. Its four foreign
// keys always mirror the delivery's.
type Dispute struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	DeliveryID snowflake.ID  `gorm:"not null;index" json:"delivery_id"`
	CampaignID snowflake.ID  `gorm:"not null;index" json:"campaign_id"`
	BrandID    snowflake.ID  `gorm:"not null;index" json:"brand_id"`
	CreatorID  snowflake.ID  `gorm:"not null;index" json:"creator_id"`
	Status     DisputeStatus `gorm:"type:text;not null;index" json:"status"`
	Reason     string        `gorm:"type:text;not null" json:"reason"`
	Resolution string        `gorm:"type:text" json:"resolution,omitempty"`
	RaisedBy   snowflake.ID  `gorm:"not null" json:"raised_by"`
	ResolvedBy *snowflake.ID `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
	Version    int64         `gorm:"not null" json:"version"`
	CreatedAt  time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null" json:"updated_at"`
}

func (Dispute) TableName() string { return "disputes" }

func (d *Dispute) EntityType() EntityType { return EntityDispute }

func (d *Dispute) CurrentStatus() string {
	if d == nil {
		return ""
	}
	return string(d.Status)
}

// CreatorProfile carries the creator's completed-campaign counter.
type CreatorProfile struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	DisplayName        string       `gorm:"type:text;not null" json:"display_name"`
	CompletedCampaigns int          `gorm:"not null" json:"completed_campaigns"`
	Version            int64        `gorm:"not null" json:"version"`
	CreatedAt          time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null" json:"updated_at"`
}

func (CreatorProfile) TableName() string { return "creator_profiles" }
