package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/pkg/db/pagination"
)

type CreateCampaignRequest struct {
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	SlotsTotal          int        `json:"slots_total"`
	Budget              int64      `json:"budget"`
	Deadline            *time.Time `json:"deadline,omitempty"`
	ApplicationDeadline *time.Time `json:"application_deadline,omitempty"`
}

type ApplyRequest struct {
	CampaignID   snowflake.ID `json:"campaign_id"`
	ProposedRate int64        `json:"proposed_rate"`
	Pitch        string       `json:"pitch"`
}

type AcceptApplicationRequest struct {
	ApplicationID snowflake.ID `json:"application_id"`
	AgreedRate    *int64       `json:"agreed_rate,omitempty"`
}

// AcceptApplicationResult is the full write set of an acceptance.
type AcceptApplicationResult struct {
	Application *Application `json:"application"`
	Campaign    *Campaign    `json:"campaign"`
	Delivery    *Delivery    `json:"delivery"`
}

type SubmitDeliveryRequest struct {
	DeliveryID  snowflake.ID `json:"delivery_id"`
	ProofURLs   []string     `json:"proof_urls"`
	ContentURLs []string     `json:"content_urls"`
}

type RequestRevisionRequest struct {
	DeliveryID snowflake.ID `json:"delivery_id"`
	Note       string       `json:"note"`
}

type ContestDeliveryRequest struct {
	DeliveryID snowflake.ID `json:"delivery_id"`
	Reason     string       `json:"reason"`
}

type ContestDeliveryResult struct {
	Delivery *Delivery `json:"delivery"`
	Dispute  *Dispute  `json:"dispute"`
}

type ResolveDisputeRequest struct {
	DisputeID  snowflake.ID   `json:"dispute_id"`
	Outcome    DisputeOutcome `json:"outcome"`
	Resolution string         `json:"resolution"`
}

type CloseDisputeRequest struct {
	DisputeID snowflake.ID `json:"dispute_id"`
	Note      string       `json:"note"`
}

type RegisterCreatorRequest struct {
	DisplayName string `json:"display_name"`
}

// ListRequest scopes list queries. The acting profile is taken from the context.
type ListRequest struct {
	pagination.Pagination
	Status     string       `form:"status"`
	CampaignID snowflake.ID `form:"-"`
}

type ListCampaignsResponse struct {
	pagination.PageInfo
	Campaigns []*Campaign `json:"campaigns"`
}

type ListApplicationsResponse struct {
	pagination.PageInfo
	Applications []*Application `json:"applications"`
}

type ListDeliveriesResponse struct {
	pagination.PageInfo
	Deliveries []*Delivery `json:"deliveries"`
}

type ListDisputesResponse struct {
	pagination.PageInfo
	Disputes []*Dispute `json:"disputes"`
}

// Service is the only entry point that mutates marketplace records. Every
// mutation validates its transition before writing and writes its full
// side-effect set atomically.
type Service interface {
	CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*Campaign, error)
	TransitionCampaign(ctx context.Context, id snowflake.ID, target CampaignStatus) (*Campaign, error)
	SubmitCampaignForReview(ctx context.Context, id snowflake.ID) (*Campaign, error)
	ActivateCampaign(ctx context.Context, id snowflake.ID) (*Campaign, error)
	PauseCampaign(ctx context.Context, id snowflake.ID) (*Campaign, error)
	ResumeCampaign(ctx context.Context, id snowflake.ID) (*Campaign, error)
	CloseApplications(ctx context.Context, id snowflake.ID) (*Campaign, error)
	CompleteCampaign(ctx context.Context, id snowflake.ID) (*Campaign, error)
	CancelCampaign(ctx context.Context, id snowflake.ID) (*Campaign, error)

	ApplyToCampaign(ctx context.Context, req ApplyRequest) (*Application, error)
	AcceptApplication(ctx context.Context, req AcceptApplicationRequest) (*AcceptApplicationResult, error)
	RejectApplication(ctx context.Context, id snowflake.ID) (*Application, error)
	WithdrawApplication(ctx context.Context, id snowflake.ID) (*Application, error)

	SubmitDelivery(ctx context.Context, req SubmitDeliveryRequest) (*Delivery, error)
	ApproveDelivery(ctx context.Context, id snowflake.ID) (*Delivery, error)
	RequestRevision(ctx context.Context, req RequestRevisionRequest) (*Delivery, error)
	ContestDelivery(ctx context.Context, req ContestDeliveryRequest) (*ContestDeliveryResult, error)

	ReviewDispute(ctx context.Context, id snowflake.ID) (*Dispute, error)
	ResolveDispute(ctx context.Context, req ResolveDisputeRequest) (*Dispute, error)
	CloseDispute(ctx context.Context, req CloseDisputeRequest) (*Dispute, error)

	RegisterCreator(ctx context.Context, req RegisterCreatorRequest) (*CreatorProfile, error)

	GetCampaign(ctx context.Context, id snowflake.ID) (*Campaign, error)
	GetApplication(ctx context.Context, id snowflake.ID) (*Application, error)
	GetDelivery(ctx context.Context, id snowflake.ID) (*Delivery, error)
	GetDispute(ctx context.Context, id snowflake.ID) (*Dispute, error)
	GetCreatorProfile(ctx context.Context, id snowflake.ID) (*CreatorProfile, error)
	ListCampaigns(ctx context.Context, req ListRequest) (ListCampaignsResponse, error)
	ListApplications(ctx context.Context, req ListRequest) (ListApplicationsResponse, error)
	ListDeliveries(ctx context.Context, req ListRequest) (ListDeliveriesResponse, error)
	ListDisputes(ctx context.Context, req ListRequest) (ListDisputesResponse, error)
}
