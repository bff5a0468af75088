package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct{ id int }

func TestBuildCursorPageInfo(t *testing.T) {
	data := []*item{{1}, {2}, {3}}
	extract := func(i *item) string { return strconv.Itoa(i.id) }

	page, info := BuildCursorPageInfo(data, 2, extract)
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "2", cursor.ID)

	page, info = BuildCursorPageInfo(data, 3, extract)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	cursor, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit())
}
