package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIllegalTransition   = errors.New("illegal_transition")
	ErrRuleViolation       = errors.New("rule_violation")
	ErrNotFound            = errors.New("not_found")
	ErrReferentialMismatch = errors.New("referential_mismatch")
	ErrInvalidState        = errors.New("invalid_state")

	ErrConcurrentModification = errors.New("concurrent_modification")
	ErrForbidden              = errors.New("forbidden")
	ErrMissingActor           = errors.New("missing_actor")
	ErrDuplicateApplication   = errors.New("duplicate_application")
	ErrDuplicateCreator       = errors.New("duplicate_creator")

	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidTitle       = errors.New("invalid_title")
	ErrInvalidSlots       = errors.New("invalid_slots")
	ErrInvalidBudget      = errors.New("invalid_budget")
	ErrInvalidDeadline    = errors.New("invalid_deadline")
	ErrInvalidDisplayName = errors.New("invalid_display_name")
	ErrInvalidOutcome     = errors.New("invalid_outcome")
	ErrInvalidReason      = errors.New("invalid_reason")
	ErrInvalidRate        = errors.New("invalid_rate")
)

// Violation names one failed business rule and the field it concerns.
type Violation struct {
	Rule    string `json:"rule"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// IllegalTransitionError reports a move absent from the transition table.
type IllegalTransitionError struct {
	Entity EntityType
	From   string
	To     string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", e.Entity, e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// RuleViolationError reports a legal move whose preconditions failed. Every
// failed rule is listed.
type RuleViolationError struct {
	Entity     EntityType
	To         string
	Violations []Violation
}

func (e *RuleViolationError) Error() string {
	rules := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		rules = append(rules, v.Rule)
	}
	return fmt.Sprintf("%s -> %s: rule violation [%s]", e.Entity, e.To, strings.Join(rules, ", "))
}

func (e *RuleViolationError) Is(target error) bool { return target == ErrRuleViolation }

// HasRule reports whether the named rule is among the violations.
func (e *RuleViolationError) HasRule(rule string) bool {
	for _, v := range e.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ReferentialMismatchError reports a dispute whose references disagree with
// its delivery's.
type ReferentialMismatchError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *ReferentialMismatchError) Error() string {
	return fmt.Sprintf("referential mismatch on %s: expected %s, got %s", e.Field, e.Expected, e.Actual)
}

func (e *ReferentialMismatchError) Is(target error) bool { return target == ErrReferentialMismatch }

// InvalidStateError reports an unknown entity type or status.
type InvalidStateError struct {
	Entity EntityType
	Status string
}

func (e *InvalidStateError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("invalid state: unknown entity type %q", e.Entity)
	}
	return fmt.Sprintf("invalid state: %s has no status %q", e.Entity, e.Status)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }
