package option

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption narrows or orders a gorm statement.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

func WithWhere(query string, args ...any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// WithIn filters column by a set of values. An empty set matches nothing.
func WithIn[V any](column string, values []V) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if len(values) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where(clause.IN{Column: clause.Column{Name: column}, Values: toAny(values)})
	})
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortBy orders results by a column name. Column names are quoted by gorm.
type SortBy struct {
	Field     string
	Direction Direction
}

func ParseSortBy(value string) (SortBy, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return SortBy{}, false
	}
	if strings.HasPrefix(value, "-") {
		return SortBy{Field: strings.TrimPrefix(value, "-"), Direction: Desc}, true
	}
	return SortBy{Field: value, Direction: Asc}, true
}

func ApplySortBy(sort SortBy) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if sort.Field == "" {
			return db
		}
		return db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: sort.Field},
			Desc:   sort.Direction == Desc,
		})
	})
}

func WithLimit(limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func toAny[V any](values []V) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
