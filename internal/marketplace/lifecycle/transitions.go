// Package lifecycle decides whether a marketplace record may move to a new
// status. It never performs I/O: every decision is a function of the record,
// its related snapshots and the supplied clock reading.
package lifecycle

import (
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

// Policy carries product switches that change the shape of the table.
type Policy struct {
	// ReopenApproved allows a dispute to be raised against an approved delivery.
	ReopenApproved bool
}

var campaignEdges = map[domain.CampaignStatus][]domain.CampaignStatus{
	domain.CampaignStatusDraft: {
		domain.CampaignStatusUnderReview,
		domain.CampaignStatusActive,
		domain.CampaignStatusCancelled,
	},
	domain.CampaignStatusUnderReview: {
		domain.CampaignStatusDraft,
		domain.CampaignStatusActive,
		domain.CampaignStatusCancelled,
	},
	domain.CampaignStatusActive: {
		domain.CampaignStatusPaused,
		domain.CampaignStatusApplicationsClosed,
		domain.CampaignStatusCompleted,
		domain.CampaignStatusCancelled,
	},
	domain.CampaignStatusPaused: {
		domain.CampaignStatusActive,
		domain.CampaignStatusCompleted,
		domain.CampaignStatusCancelled,
	},
	domain.CampaignStatusApplicationsClosed: {
		domain.CampaignStatusActive,
		domain.CampaignStatusCompleted,
		domain.CampaignStatusCancelled,
	},
	domain.CampaignStatusCompleted: {},
	domain.CampaignStatusCancelled: {},
}

var applicationEdges = map[domain.ApplicationStatus][]domain.ApplicationStatus{
	domain.ApplicationStatusPending: {
		domain.ApplicationStatusAccepted,
		domain.ApplicationStatusRejected,
		domain.ApplicationStatusWithdrawn,
	},
	domain.ApplicationStatusAccepted: {
		domain.ApplicationStatusCompleted,
		domain.ApplicationStatusWithdrawn,
	},
	domain.ApplicationStatusRejected:  {},
	domain.ApplicationStatusWithdrawn: {},
	domain.ApplicationStatusCompleted: {},
}

var deliveryEdges = map[domain.DeliveryStatus][]domain.DeliveryStatus{
	domain.DeliveryStatusPending: {
		domain.DeliveryStatusSubmitted,
		domain.DeliveryStatusClosed,
	},
	domain.DeliveryStatusSubmitted: {
		domain.DeliveryStatusApproved,
		domain.DeliveryStatusContested,
		domain.DeliveryStatusInDispute,
		domain.DeliveryStatusPending,
	},
	domain.DeliveryStatusContested: {
		domain.DeliveryStatusInDispute,
		domain.DeliveryStatusApproved,
	},
	domain.DeliveryStatusInDispute: {
		domain.DeliveryStatusApproved,
		domain.DeliveryStatusClosed,
		domain.DeliveryStatusResolved,
	},
	domain.DeliveryStatusResolved: {
		domain.DeliveryStatusApproved,
		domain.DeliveryStatusClosed,
	},
	domain.DeliveryStatusApproved: {},
	domain.DeliveryStatusClosed:   {},
}

var disputeEdges = map[domain.DisputeStatus][]domain.DisputeStatus{
	domain.DisputeStatusOpen: {
		domain.DisputeStatusUnderReview,
		domain.DisputeStatusResolvedCreatorFavor,
		domain.DisputeStatusResolvedBrandFavor,
		domain.DisputeStatusClosed,
	},
	domain.DisputeStatusUnderReview: {
		domain.DisputeStatusResolvedCreatorFavor,
		domain.DisputeStatusResolvedBrandFavor,
		domain.DisputeStatusClosed,
	},
	domain.DisputeStatusResolvedCreatorFavor: {domain.DisputeStatusClosed},
	domain.DisputeStatusResolvedBrandFavor:   {domain.DisputeStatusClosed},
	domain.DisputeStatusClosed:               {},
}

// Table is the single source of legal status edges per entity type.
type Table struct {
	edges map[domain.EntityType]map[string][]string
}

var (
	defaultTable = buildTable(Policy{})
	reopenTable  = buildTable(Policy{ReopenApproved: true})
)

// TableFor returns the table matching the policy. Tables are immutable and shared.
func TableFor(policy Policy) *Table {
	if policy.ReopenApproved {
		return reopenTable
	}
	return defaultTable
}

func buildTable(policy Policy) *Table {
	delivery := flatten(deliveryEdges)
	if policy.ReopenApproved {
		approved := string(domain.DeliveryStatusApproved)
		delivery[approved] = append(delivery[approved], string(domain.DeliveryStatusInDispute))
	}
	return &Table{edges: map[domain.EntityType]map[string][]string{
		domain.EntityCampaign:    flatten(campaignEdges),
		domain.EntityApplication: flatten(applicationEdges),
		domain.EntityDelivery:    delivery,
		domain.EntityDispute:     flatten(disputeEdges),
	}}
}

func flatten[S ~string](edges map[S][]S) map[string][]string {
	out := make(map[string][]string, len(edges))
	for from, targets := range edges {
		next := make([]string, 0, len(targets))
		for _, to := range targets {
			next = append(next, string(to))
		}
		out[string(from)] = next
	}
	return out
}

// AllowedNext returns the statuses reachable from current in one step. An
// unknown entity type or status yields an *domain.InvalidStateError; a known
// terminal status yields an empty slice.
func (t *Table) AllowedNext(entity domain.EntityType, current string) ([]string, error) {
	statuses, ok := t.edges[entity]
	if !ok {
		return nil, &domain.InvalidStateError{Entity: entity}
	}
	next, ok := statuses[current]
	if !ok {
		return nil, &domain.InvalidStateError{Entity: entity, Status: current}
	}
	out := make([]string, len(next))
	copy(out, next)
	return out, nil
}

func (t *Table) Allows(entity domain.EntityType, from, to string) (bool, error) {
	next, err := t.AllowedNext(entity, from)
	if err != nil {
		return false, err
	}
	for _, candidate := range next {
		if candidate == to {
			return true, nil
		}
	}
	return false, nil
}

// Statuses lists every status known for the entity type.
func (t *Table) Statuses(entity domain.EntityType) []string {
	statuses := t.edges[entity]
	out := make([]string, 0, len(statuses))
	for status := range statuses {
		out = append(out, status)
	}
	return out
}

// IsTerminal reports whether the status has no outgoing edges.
func (t *Table) IsTerminal(entity domain.EntityType, status string) bool {
	next, err := t.AllowedNext(entity, status)
	return err == nil && len(next) == 0
}
