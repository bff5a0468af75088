package repository

import (
	"context"

	"github.com/smallbiznis/collabhub/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store for one model type.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when no row matches.
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	// UpdateVersioned applies fields to the row with the given id only when its
	// version column still equals version, and bumps the version by one. It
	// returns the number of rows changed.
	UpdateVersioned(ctx context.Context, id any, version int64, fields map[string]any) (int64, error)
	Exists(ctx context.Context, id any) (bool, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
