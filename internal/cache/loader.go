package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetOrLoad serves a JSON view from the store or loads and stores it. Store
// failures degrade to a direct load. A view loaded while the key was
// invalidated is returned but not stored.
func GetOrLoad[T any](ctx context.Context, store Store, key Key, field string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if store == nil || key.IsZero() {
		return load(ctx)
	}

	if raw, ok, err := store.Get(ctx, key, field); err == nil && ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	generation, genErr := store.Generation(ctx, key)
	value, err := load(ctx)
	if err != nil || genErr != nil {
		return value, err
	}
	if raw, err := json.Marshal(value); err == nil {
		_, _ = store.Set(ctx, key, field, raw, ttl, generation)
	}
	return value, nil
}
