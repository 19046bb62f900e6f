package pagination

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayprogrammer/socialnet-v2/pkg/database"
)

func TestNewClamps(t *testing.T) {
	assert.Equal(t, Params{Page: 1, PerPage: 1}, New(0, 0))
	assert.Equal(t, Params{Page: 1, PerPage: 10}, New(-3, 10))
	p := New(3, 25)
	assert.Equal(t, 50, p.Offset())
	assert.Equal(t, 25, p.Limit())
}

func TestLastPage(t *testing.T) {
	cases := []struct {
		total   int64
		perPage int
		want    int
	}{
		{0, 50, 1},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{400, 400, 1},
		{401, 400, 2},
		{10, 0, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, LastPage(c.total, c.perPage), "total=%d perPage=%d", c.total, c.perPage)
	}
}

func TestBuildNeverReturnsNilItems(t *testing.T) {
	page := Build[int](nil, 0, New(4, 20))
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 4, page.CurrentPage)
	assert.Equal(t, 1, page.LastPage)
}

func TestMapKeepsWindow(t *testing.T) {
	src := Build([]int{1, 2, 3}, 13, New(2, 3))
	out := Map(src, func(i int) string { return fmt.Sprint(i * 2) })
	assert.Equal(t, []string{"2", "4", "6"}, out.Items)
	assert.Equal(t, 3, out.PerPage)
	assert.Equal(t, 2, out.CurrentPage)
	assert.Equal(t, 5, out.LastPage)
}

type row struct {
	ID  int `gorm:"primaryKey"`
	Pos int
}

func TestQueryWindowsOrderedRows(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&row{}))
	rows := make([]row, 7)
	for i := range rows {
		rows[i] = row{ID: i + 1, Pos: 7 - i}
	}
	require.NoError(t, db.Create(&rows).Error)

	ctx := context.Background()
	q := db.Model(&row{}).Order("pos ASC")

	items, total, err := Query[row](ctx, q, New(2, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	require.Len(t, items, 3)
	assert.Equal(t, []int{4, 5, 6}, []int{items[0].Pos, items[1].Pos, items[2].Pos})

	items, total, err = Query[row](ctx, q, New(9, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	assert.Empty(t, items)

	items, total, err = Query[row](ctx, q, New(math.MaxInt/3+2, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	assert.Empty(t, items)
}

func TestNewKeepsOffsetInRange(t *testing.T) {
	for _, perPage := range []int{1, 3, 50, 400} {
		p := New(math.MaxInt, perPage)
		assert.GreaterOrEqual(t, p.Offset(), 0, "perPage=%d", perPage)
		assert.Equal(t, math.MaxInt/perPage, p.Page)

		p = New(math.MaxInt/perPage+2, perPage)
		assert.GreaterOrEqual(t, p.Offset(), 0, "perPage=%d", perPage)
	}
}
