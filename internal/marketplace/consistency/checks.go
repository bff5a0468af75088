// Package consistency verifies the denormalized marketplace counters and
// references against the records they summarize.
package consistency

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

const (
	CheckSlotsFilled        = "campaign.slots_filled"
	CheckTotalApplications  = "campaign.total_applications"
	CheckSlotsBounds        = "campaign.slots_bounds"
	CheckCompletedCampaigns = "creator.completed_campaigns"
	CheckOnTime             = "delivery.on_time"
	CheckDisputeReferences  = "dispute.references"
)

// CheckResult reports one invariant for one subject. Expected and Actual
// show how far the stored value drifted, not just that it did.
type CheckResult struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	Valid    bool   `json:"valid"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
}

func subject(kind domain.EntityType, id snowflake.ID) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// OnTime derives the delivery's on-time flag. A delivery without a deadline
// is always on time.
func OnTime(submittedAt time.Time, deadline *time.Time) bool {
	return deadline == nil || !submittedAt.After(*deadline)
}

// SlotsFilled counts applications of the campaign that hold a slot.
func SlotsFilled(campaignID snowflake.ID, applications []*domain.Application) int {
	n := 0
	for _, a := range applications {
		if a.CampaignID == campaignID && a.Status.HoldsSlot() {
			n++
		}
	}
	return n
}

func TotalApplications(campaignID snowflake.ID, applications []*domain.Application) int {
	n := 0
	for _, a := range applications {
		if a.CampaignID == campaignID {
			n++
		}
	}
	return n
}

func CompletedCampaigns(creatorID snowflake.ID, applications []*domain.Application) int {
	n := 0
	for _, a := range applications {
		if a.CreatorID == creatorID && a.Status == domain.ApplicationStatusCompleted {
			n++
		}
	}
	return n
}

// CheckCampaignSlotsFilled expects applications to contain every
// application of the campaign.
func CheckCampaignSlotsFilled(c *domain.Campaign, applications []*domain.Application) CheckResult {
	expected := SlotsFilled(c.ID, applications)
	return CheckResult{
		Name:     CheckSlotsFilled,
		Subject:  subject(domain.EntityCampaign, c.ID),
		Valid:    expected == c.SlotsFilled,
		Expected: expected,
		Actual:   c.SlotsFilled,
	}
}

func CheckCampaignTotalApplications(c *domain.Campaign, applications []*domain.Application) CheckResult {
	expected := TotalApplications(c.ID, applications)
	return CheckResult{
		Name:     CheckTotalApplications,
		Subject:  subject(domain.EntityCampaign, c.ID),
		Valid:    expected == c.TotalApplications,
		Expected: expected,
		Actual:   c.TotalApplications,
	}
}

func CheckCampaignSlotsBounds(c *domain.Campaign) CheckResult {
	return CheckResult{
		Name:     CheckSlotsBounds,
		Subject:  subject(domain.EntityCampaign, c.ID),
		Valid:    c.SlotsFilled >= 0 && c.SlotsFilled <= c.SlotsTotal,
		Expected: fmt.Sprintf("0..%d", c.SlotsTotal),
		Actual:   c.SlotsFilled,
	}
}

func CheckCreatorCompletedCampaigns(p *domain.CreatorProfile, applications []*domain.Application) CheckResult {
	expected := CompletedCampaigns(p.ID, applications)
	return CheckResult{
		Name:     CheckCompletedCampaigns,
		Subject:  subject(domain.EntityCreatorProfile, p.ID),
		Valid:    expected == p.CompletedCampaigns,
		Expected: expected,
		Actual:   p.CompletedCampaigns,
	}
}

// CheckDeliveryOnTime compares the stored flag with the one derived from
// submitted_at and deadline. Unsubmitted deliveries must carry no flag.
func CheckDeliveryOnTime(d *domain.Delivery) CheckResult {
	var expected *bool
	if d.SubmittedAt != nil {
		v := OnTime(*d.SubmittedAt, d.Deadline)
		expected = &v
	}
	return CheckResult{
		Name:     CheckOnTime,
		Subject:  subject(domain.EntityDelivery, d.ID),
		Valid:    equalBoolPtr(expected, d.OnTime),
		Expected: boolPtrValue(expected),
		Actual:   boolPtrValue(d.OnTime),
	}
}

// CheckDisputeRefs verifies the dispute mirrors its delivery. A nil delivery
// means the referenced delivery is missing.
func CheckDisputeRefs(d *domain.Dispute, delivery *domain.Delivery) CheckResult {
	res := CheckResult{
		Name:    CheckDisputeReferences,
		Subject: subject(domain.EntityDispute, d.ID),
		Valid:   true,
	}
	if err := VerifyDisputeReferences(d, delivery); err != nil {
		res.Valid = false
		if mismatch, ok := err.(*domain.ReferentialMismatchError); ok {
			res.Expected = mismatch.Field + "=" + mismatch.Expected
			res.Actual = mismatch.Field + "=" + mismatch.Actual
		} else {
			res.Expected = "delivery:" + d.DeliveryID.String()
			res.Actual = "missing"
		}
	}
	return res
}

// VerifyDisputeReferences returns a *domain.ReferentialMismatchError naming
// the first foreign key that disagrees with the delivery's.
func VerifyDisputeReferences(d *domain.Dispute, delivery *domain.Delivery) error {
	if delivery == nil {
		return &domain.NotFoundError{Entity: domain.EntityDelivery, ID: d.DeliveryID.String()}
	}
	pairs := []struct {
		field            string
		expected, actual snowflake.ID
	}{
		{"delivery_id", delivery.ID, d.DeliveryID},
		{"campaign_id", delivery.CampaignID, d.CampaignID},
		{"brand_id", delivery.BrandID, d.BrandID},
		{"creator_id", delivery.CreatorID, d.CreatorID},
	}
	for _, p := range pairs {
		if p.expected != p.actual {
			return &domain.ReferentialMismatchError{
				Field:    p.field,
				Expected: p.expected.String(),
				Actual:   p.actual.String(),
			}
		}
	}
	return nil
}

func equalBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func boolPtrValue(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}
