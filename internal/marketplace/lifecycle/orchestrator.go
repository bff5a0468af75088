package lifecycle

import (
	"github.com/smallbiznis/collabhub/internal/marketplace/domain"
)

// Orchestrator is the single gate every status mutation passes.
type Orchestrator struct {
	table *Table
}

func NewOrchestrator(policy Policy) *Orchestrator {
	return &Orchestrator{table: TableFor(policy)}
}

func (o *Orchestrator) Table() *Table {
	return o.table
}

// ValidateTransition returns nil when entity may move to target, an
// *domain.IllegalTransitionError when the edge is absent, an
// *domain.RuleViolationError when a precondition fails, or an
// *domain.InvalidStateError for malformed input.
func (o *Orchestrator) ValidateTransition(entity Entity, target string, related Related) error {
	if entity == nil {
		return &domain.InvalidStateError{}
	}
	kind := entity.EntityType()
	from := entity.CurrentStatus()

	allowed, err := o.table.Allows(kind, from, target)
	if err != nil {
		return err
	}
	if !allowed {
		return &domain.IllegalTransitionError{Entity: kind, From: from, To: target}
	}

	if res := CheckRules(entity, related, target); !res.OK {
		return &domain.RuleViolationError{Entity: kind, To: target, Violations: res.Violations}
	}
	return nil
}
