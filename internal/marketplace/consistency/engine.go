package consistency

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collabhub/internal/clock"
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

// Snapshot is a point-in-time copy of the records to verify. Applications
// must include every application of the listed campaigns and creators.
type Snapshot struct {
	Campaigns    []*domain.Campaign
	Applications []*domain.Application
	Deliveries   []*domain.Delivery
	Disputes     []*domain.Dispute
	Creators     []*domain.CreatorProfile
}

type Report struct {
	CheckedAt time.Time     `json:"checked_at"`
	Results   []CheckResult `json:"results"`
}

// Drifted returns only the failing results.
func (r Report) Drifted() []CheckResult {
	var out []CheckResult
	for _, res := range r.Results {
		if !res.Valid {
			out = append(out, res)
		}
	}
	return out
}

func (r Report) Valid() bool {
	return len(r.Drifted()) == 0
}

// DriftByCheck counts failing results per check name.
func (r Report) DriftByCheck() map[string]int {
	out := map[string]int{}
	for _, res := range r.Results {
		if _, ok := out[res.Name]; !ok {
			out[res.Name] = 0
		}
		if !res.Valid {
			out[res.Name]++
		}
	}
	return out
}

type Engine struct {
	clock clock.Clock
}

func NewEngine(c clock.Clock) *Engine {
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Engine{clock: c}
}

// Run evaluates every check over the snapshot.
func (e *Engine) Run(s Snapshot) Report {
	byCampaign := map[snowflake.ID][]*domain.Application{}
	byCreator := map[snowflake.ID][]*domain.Application{}
	for _, a := range s.Applications {
		byCampaign[a.CampaignID] = append(byCampaign[a.CampaignID], a)
		byCreator[a.CreatorID] = append(byCreator[a.CreatorID], a)
	}
	deliveries := make(map[snowflake.ID]*domain.Delivery, len(s.Deliveries))
	for _, d := range s.Deliveries {
		deliveries[d.ID] = d
	}

	results := make([]CheckResult, 0, 3*len(s.Campaigns)+len(s.Creators)+len(s.Deliveries)+len(s.Disputes))
	for _, c := range s.Campaigns {
		apps := byCampaign[c.ID]
		results = append(results,
			CheckCampaignSlotsFilled(c, apps),
			CheckCampaignTotalApplications(c, apps),
			CheckCampaignSlotsBounds(c),
		)
	}
	for _, p := range s.Creators {
		results = append(results, CheckCreatorCompletedCampaigns(p, byCreator[p.ID]))
	}
	for _, d := range s.Deliveries {
		results = append(results, CheckDeliveryOnTime(d))
	}
	for _, d := range s.Disputes {
		results = append(results, CheckDisputeRefs(d, deliveries[d.DeliveryID]))
	}

	return Report{CheckedAt: e.clock.Now(), Results: results}
}

type CampaignRepair struct {
	Campaign          *domain.Campaign
	SlotsFilled       int
	TotalApplications int
}

type CreatorRepair struct {
	Creator            *domain.CreatorProfile
	CompletedCampaigns int
}

type DeliveryRepair struct {
	Delivery *domain.Delivery
	OnTime   *bool
}

// RepairPlan lists the corrected values for every drifted counter or
// derived flag. Dispute reference mismatches are reported but never
// rewritten.
type RepairPlan struct {
	Campaigns  []CampaignRepair
	Creators   []CreatorRepair
	Deliveries []DeliveryRepair
}

func (p RepairPlan) Empty() bool {
	return len(p.Campaigns) == 0 && len(p.Creators) == 0 && len(p.Deliveries) == 0
}

// PlanRepairs recomputes counters from the snapshot.
func PlanRepairs(s Snapshot) RepairPlan {
	var plan RepairPlan
	for _, c := range s.Campaigns {
		filled := SlotsFilled(c.ID, s.Applications)
		total := TotalApplications(c.ID, s.Applications)
		if filled != c.SlotsFilled || total != c.TotalApplications {
			plan.Campaigns = append(plan.Campaigns, CampaignRepair{Campaign: c, SlotsFilled: filled, TotalApplications: total})
		}
	}
	for _, p := range s.Creators {
		completed := CompletedCampaigns(p.ID, s.Applications)
		if completed != p.CompletedCampaigns {
			plan.Creators = append(plan.Creators, CreatorRepair{Creator: p, CompletedCampaigns: completed})
		}
	}
	for _, d := range s.Deliveries {
		if CheckDeliveryOnTime(d).Valid {
			continue
		}
		var onTime *bool
		if d.SubmittedAt != nil {
			v := OnTime(*d.SubmittedAt, d.Deadline)
			onTime = &v
		}
		plan.Deliveries = append(plan.Deliveries, DeliveryRepair{Delivery: d, OnTime: onTime})
	}
	return plan
}

// Repairable reports whether PlanRepairs rewrites records failing check.
func Repairable(check string) bool {
	switch check {
	case CheckSlotsFilled, CheckTotalApplications, CheckCompletedCampaigns, CheckOnTime:
		return true
	default:
		return false
	}
}
