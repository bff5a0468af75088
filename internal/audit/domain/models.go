package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionTransition = "transition"
	ActionCreate     = "create"
	ActionDenied     = "denied"
	ActionReconcile  = "reconcile"
)

// AuditLog records one state change or refused attempt against a marketplace record.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null;index:ix_audit_logs_target" json:"target_type"`
	TargetID   string            `gorm:"type:text;not null;index:ix_audit_logs_target" json:"target_id"`
	FromStatus string            `gorm:"type:text" json:"from_status,omitempty"`
	ToStatus   string            `gorm:"type:text" json:"to_status,omitempty"`
	RequestID  string            `gorm:"type:text" json:"request_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	Cursor     snowflake.ID
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
