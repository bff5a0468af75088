// Package cache holds profile-scoped query results and the invalidation
// sink the marketplace service notifies after every committed write.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const keyPrefix = "collabhub:cache"

// Key scopes cached views to one entity type as seen by one profile.
type Key struct {
	Entity      string
	ProfileType string
	ProfileID   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix,
		strings.ToLower(k.Entity), strings.ToLower(k.ProfileType), k.ProfileID)
}

// generationKey names the counter Invalidate bumps for this key.
func (k Key) generationKey() string {
	return k.String() + ":gen"
}

func (k Key) IsZero() bool {
	return k.Entity == "" && k.ProfileType == "" && k.ProfileID == ""
}

// Invalidator drops every cached view stored under the given keys.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...Key) error
}

// Store keeps serialized views under a key and a per-query field, so one
// invalidation clears every query of that key. Every field expires on its
// own ttl.
//
// Invalidate also advances the key's generation. A loader reads the
// generation before it loads and passes it to Set, which stores nothing
// once the key has been invalidated since.
type Store interface {
	Invalidator
	Get(ctx context.Context, key Key, field string) ([]byte, bool, error)
	Generation(ctx context.Context, key Key) (int64, error)
	Set(ctx context.Context, key Key, field string, value []byte, ttl time.Duration, generation int64) (bool, error)
}
