package option

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSortBy(t *testing.T) {
	sort, ok := ParseSortBy("-created_at")
	assert.True(t, ok)
	assert.Equal(t, SortBy{Field: "created_at", Direction: Desc}, sort)

	sort, ok = ParseSortBy("deadline")
	assert.True(t, ok)
	assert.Equal(t, Asc, sort.Direction)

	_, ok = ParseSortBy("  ")
	assert.False(t, ok)
}
