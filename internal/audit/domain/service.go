package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/collabhub/pkg/db/pagination"
)

// Entry describes one event to record. The actor and request id come from
// the context.
type Entry struct {
	Action     string
	TargetType string
	TargetID   string
	FromStatus string
	ToStatus   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
	ActorType  string `form:"actor_type"`
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []*AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidTarget = errors.New("invalid_target")
)
