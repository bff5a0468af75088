package lifecycle

import (
	"strings"
	"time"

	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

const (
	RuleCampaignSlotsMin           = "campaign.slots_total.min"
	RuleCampaignDeadlinePast       = "campaign.deadline.past"
	RuleCampaignCapacity           = "campaign.capacity"
	RuleCampaignStatus             = "campaign.status"
	RuleCampaignRequired           = "campaign.required"
	RuleApplicationDeadlinePast    = "campaign.application_deadline.past"
	RuleApplicationProposedRateMin = "application.proposed_rate.min"
	RuleDeliveryStarted            = "delivery.started"
	RuleDeliveryProofRequired      = "delivery.proof_urls.required"
	RuleContestReasonRequired      = "delivery.contest_reason.required"
	RuleDisputeResolutionRequired  = "dispute.resolution.required"
	RuleEntityUnsupported          = "entity.unsupported"
)

// Input carries caller-supplied values that a transition will write.
type Input struct {
	// ProofURLs replaces the delivery's proof set when non-nil.
	ProofURLs     []string
	ContestReason string
	// Resolution replaces the dispute's resolution text when non-empty.
	Resolution string
}

// Related holds the snapshots a rule may consult. Now is the only clock
// reading rules ever see.
type Related struct {
	Now         time.Time
	Campaign    *domain.Campaign
	Application *domain.Application
	Delivery    *domain.Delivery
	Input       Input
}

type RuleResult struct {
	OK         bool
	Violations []domain.Violation
}

func result(violations []domain.Violation) RuleResult {
	return RuleResult{OK: len(violations) == 0, Violations: violations}
}

// Entity is a lifecycle-governed record.
type Entity interface {
	EntityType() domain.EntityType
	CurrentStatus() string
}

// CheckRules evaluates every precondition attached to moving entity to
// target and returns all failures together. An entity without a rule set
// never passes.
func CheckRules(entity Entity, related Related, target string) RuleResult {
	switch e := entity.(type) {
	case *domain.Campaign:
		return checkCampaign(e, related, domain.CampaignStatus(target))
	case *domain.Application:
		return checkApplication(e, related, domain.ApplicationStatus(target))
	case *domain.Delivery:
		return checkDelivery(e, related, domain.DeliveryStatus(target))
	case *domain.Dispute:
		return checkDispute(e, related, domain.DisputeStatus(target))
	default:
		kind := "nil"
		if entity != nil {
			kind = string(entity.EntityType())
		}
		return result([]domain.Violation{{
			Rule:    RuleEntityUnsupported,
			Field:   "entity",
			Message: "no lifecycle rules for " + kind,
		}})
	}
}

func checkCampaign(c *domain.Campaign, related Related, target domain.CampaignStatus) RuleResult {
	var violations []domain.Violation
	if target == domain.CampaignStatusActive {
		if c.SlotsTotal < 1 {
			violations = append(violations, domain.Violation{
				Rule:    RuleCampaignSlotsMin,
				Field:   "slots_total",
				Message: "campaign needs at least one slot",
			})
		}
		if c.Deadline != nil && c.Deadline.Before(related.Now) {
			violations = append(violations, domain.Violation{
				Rule:    RuleCampaignDeadlinePast,
				Field:   "deadline",
				Message: "campaign deadline has already passed",
			})
		}
	}
	return result(violations)
}

func checkApplication(a *domain.Application, related Related, target domain.ApplicationStatus) RuleResult {
	var violations []domain.Violation
	switch target {
	case domain.ApplicationStatusAccepted:
		campaign := related.Campaign
		if campaign == nil {
			violations = append(violations, domain.Violation{
				Rule:    RuleCampaignRequired,
				Field:   "campaign_id",
				Message: "campaign snapshot is required to accept an application",
			})
			break
		}
		if campaign.SlotsFilled >= campaign.SlotsTotal {
			violations = append(violations, domain.Violation{
				Rule:    RuleCampaignCapacity,
				Field:   "slots_filled",
				Message: "campaign has no open slots",
			})
		}
		if campaign.Status != domain.CampaignStatusActive && campaign.Status != domain.CampaignStatusApplicationsClosed {
			violations = append(violations, domain.Violation{
				Rule:    RuleCampaignStatus,
				Field:   "status",
				Message: "campaign is " + string(campaign.Status),
			})
		}
	case domain.ApplicationStatusWithdrawn:
		if a.Status == domain.ApplicationStatusAccepted && related.Delivery != nil &&
			related.Delivery.Status != domain.DeliveryStatusPending {
			violations = append(violations, domain.Violation{
				Rule:    RuleDeliveryStarted,
				Field:   "delivery.status",
				Message: "delivery is already " + string(related.Delivery.Status),
			})
		}
	}
	return result(violations)
}

func checkDelivery(d *domain.Delivery, related Related, target domain.DeliveryStatus) RuleResult {
	var violations []domain.Violation
	switch target {
	case domain.DeliveryStatusSubmitted:
		proof := []string(d.ProofURLs)
		if related.Input.ProofURLs != nil {
			proof = related.Input.ProofURLs
		}
		if countNonBlank(proof) == 0 {
			violations = append(violations, domain.Violation{
				Rule:    RuleDeliveryProofRequired,
				Field:   "proof_urls",
				Message: "at least one proof url is required",
			})
		}
	case domain.DeliveryStatusContested:
		if strings.TrimSpace(related.Input.ContestReason) == "" {
			violations = append(violations, domain.Violation{
				Rule:    RuleContestReasonRequired,
				Field:   "reason",
				Message: "a contest reason is required",
			})
		}
	}
	return result(violations)
}

func checkDispute(d *domain.Dispute, related Related, target domain.DisputeStatus) RuleResult {
	var violations []domain.Violation
	if target.IsResolution() {
		resolution := d.Resolution
		if related.Input.Resolution != "" {
			resolution = related.Input.Resolution
		}
		if strings.TrimSpace(resolution) == "" {
			violations = append(violations, domain.Violation{
				Rule:    RuleDisputeResolutionRequired,
				Field:   "resolution",
				Message: "resolution text is required",
			})
		}
	}
	return result(violations)
}

// CheckApplicationCreate validates a new application against its campaign.
func CheckApplicationCreate(campaign *domain.Campaign, proposedRate int64, now time.Time) RuleResult {
	var violations []domain.Violation
	if campaign.Status != domain.CampaignStatusActive {
		violations = append(violations, domain.Violation{
			Rule:    RuleCampaignStatus,
			Field:   "status",
			Message: "campaign is not accepting applications",
		})
	}
	if campaign.ApplicationDeadline != nil && campaign.ApplicationDeadline.Before(now) {
		violations = append(violations, domain.Violation{
			Rule:    RuleApplicationDeadlinePast,
			Field:   "application_deadline",
			Message: "application deadline has passed",
		})
	}
	if proposedRate < 0 {
		violations = append(violations, domain.Violation{
			Rule:    RuleApplicationProposedRateMin,
			Field:   "proposed_rate",
			Message: "proposed rate cannot be negative",
		})
	}
	return result(violations)
}

func countNonBlank(values []string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
