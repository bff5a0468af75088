package domain

// EntityType tags the four lifecycle-governed records. Dispatch on it is
// always an exhaustive switch.
type EntityType string

const (
	EntityCampaign    EntityType = "campaign"
	EntityApplication EntityType = "application"
	EntityDelivery    EntityType = "delivery"
	EntityDispute     EntityType = "dispute"

	// EntityCreatorProfile is only a cache resource; it has no lifecycle.
	EntityCreatorProfile EntityType = "creator_profile"
)

// LifecycleEntities lists the entity types that own a transition table.
var LifecycleEntities = []EntityType{EntityCampaign, EntityApplication, EntityDelivery, EntityDispute}

// CampaignStatus represents lifecycle states for a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft              CampaignStatus = "draft"
	CampaignStatusUnderReview        CampaignStatus = "under_review"
	CampaignStatusActive             CampaignStatus = "active"
	CampaignStatusPaused             CampaignStatus = "paused"
	CampaignStatusApplicationsClosed CampaignStatus = "applications_closed"
	CampaignStatusCompleted          CampaignStatus = "completed"
	CampaignStatusCancelled          CampaignStatus = "cancelled"
)

// ApplicationStatus represents lifecycle states for an application.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusAccepted  ApplicationStatus = "accepted"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "withdrawn"
	ApplicationStatusCompleted ApplicationStatus = "completed"
)

// SlotHoldingStatuses are the application statuses that occupy a campaign slot.
var SlotHoldingStatuses = []ApplicationStatus{ApplicationStatusAccepted, ApplicationStatusCompleted}

// HoldsSlot reports whether an application in this status occupies a campaign slot.
func (s ApplicationStatus) HoldsSlot() bool {
	return s == ApplicationStatusAccepted || s == ApplicationStatusCompleted
}

// DeliveryStatus represents lifecycle states for a delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSubmitted DeliveryStatus = "submitted"
	DeliveryStatusApproved  DeliveryStatus = "approved"
	DeliveryStatusContested DeliveryStatus = "contested"
	DeliveryStatusInDispute DeliveryStatus = "in_dispute"
	DeliveryStatusResolved  DeliveryStatus = "resolved"
	DeliveryStatusClosed    DeliveryStatus = "closed"
)

// DisputeStatus represents lifecycle states for a dispute.
type DisputeStatus string

const (
	DisputeStatusOpen                 DisputeStatus = "open"
	DisputeStatusUnderReview          DisputeStatus = "under_review"
	DisputeStatusResolvedCreatorFavor DisputeStatus = "resolved_creator_favor"
	DisputeStatusResolvedBrandFavor   DisputeStatus = "resolved_brand_favor"
	DisputeStatusClosed               DisputeStatus = "closed"
)

func (s DisputeStatus) IsResolution() bool {
	return s == DisputeStatusResolvedCreatorFavor || s == DisputeStatusResolvedBrandFavor
}

// DisputeOutcome is the arbitrator's ruling.
type DisputeOutcome string

const (
	DisputeOutcomeCreatorFavor DisputeOutcome = "creator_favor"
	DisputeOutcomeBrandFavor   DisputeOutcome = "brand_favor"
)

func (o DisputeOutcome) Status() (DisputeStatus, bool) {
	switch o {
	case DisputeOutcomeCreatorFavor:
		return DisputeStatusResolvedCreatorFavor, true
	case DisputeOutcomeBrandFavor:
		return DisputeStatusResolvedBrandFavor, true
	default:
		return "", false
	}
}
