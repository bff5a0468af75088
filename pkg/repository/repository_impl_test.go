package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/collabhub/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID      int64 `gorm:"primaryKey"`
	Owner   string
	Status  string
	Count   int
	Version int64
}

func setupStore(t *testing.T) (*gorm.DB, Repository[widget]) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return conn, ProvideStore[widget](conn)
}

func TestUpdateVersioned(t *testing.T) {
	ctx := context.Background()
	_, store := setupStore(t)

	require.NoError(t, store.Create(ctx, &widget{ID: 1, Owner: "a", Status: "draft"}))

	rows, err := store.UpdateVersioned(ctx, int64(1), 0, map[string]any{"status": "active"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	stale, err := store.UpdateVersioned(ctx, int64(1), 0, map[string]any{"status": "paused"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, stale, "stale version must not update")

	got, err := store.FindOne(ctx, &widget{ID: 1})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "active", got.Status)
	assert.EqualValues(t, 1, got.Version)
}

func TestFindWithOptions(t *testing.T) {
	ctx := context.Background()
	_, store := setupStore(t)

	for i, owner := range []string{"a", "b", "a", "c"} {
		require.NoError(t, store.Create(ctx, &widget{ID: int64(i + 1), Owner: owner, Count: i}))
	}

	items, err := store.Find(ctx, &widget{Owner: "a"}, option.ApplySortBy(option.SortBy{Field: "count", Direction: option.Desc}))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.EqualValues(t, 3, items[0].ID)

	items, err = store.Find(ctx, nil, option.WithIn("owner", []string{"b", "c"}))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = store.Find(ctx, nil, option.WithIn[string]("owner", nil))
	require.NoError(t, err)
	assert.Empty(t, items)

	count, err := store.Count(ctx, nil, option.WithWhere("count >= ?", 2))
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	missing, err := store.FindOne(ctx, &widget{ID: 99})
	require.NoError(t, err)
	assert.Nil(t, missing)

	exists, err := store.Exists(ctx, int64(4))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWithTrxRollsBack(t *testing.T) {
	ctx := context.Background()
	conn, store := setupStore(t)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := store.WithTrx(tx).Create(ctx, &widget{ID: 7}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	exists, err := store.Exists(ctx, int64(7))
	require.NoError(t, err)
	assert.False(t, exists)
}
