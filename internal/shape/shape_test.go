package shape_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"restkit/internal/shape"
	"restkit/internal/testutil"
)

type item struct {
	ID      uint `gorm:"primaryKey"`
	Title   string
	Score   int
	Created time.Time
	Flag    bool
}

var itemFields = shape.Fields{
	"title":   {Column: "title", Kind: shape.String, Filter: true, Sort: true},
	"score":   {Column: "score", Kind: shape.Int, Filter: true, Sort: true},
	"created": {Column: "created", Kind: shape.Time, Filter: true, Sort: true},
	"flag":    {Column: "flag", Kind: shape.Bool, Filter: true},
}

func seedItems(t *testing.T) *gorm.DB {
	t.Helper()
	gdb := testutil.OpenDB(t)
	require.NoError(t, gdb.AutoMigrate(&item{}))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []item{
		{Title: "alpha", Score: 3, Created: base, Flag: true},
		{Title: "banana", Score: 1, Created: base.Add(time.Hour)},
		{Title: "candle", Score: 3, Created: base.Add(2 * time.Hour), Flag: true},
		{Title: "dandelion", Score: 2, Created: base.Add(3 * time.Hour)},
		{Title: "ember", Score: 3, Created: base.Add(4 * time.Hour)},
	}
	require.NoError(t, gdb.Create(&rows).Error)
	return gdb
}

func shapedIDs(t *testing.T, gdb *gorm.DB, req shape.Request) []uint {
	t.Helper()
	q, err := shape.ApplyFilterAndSort(req, itemFields, gdb.Model(&item{}))
	require.NoError(t, err)

	var rows []item
	require.NoError(t, q.Find(&rows).Error)
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestFilterOperators(t *testing.T) {
	gdb := seedItems(t)

	assert.Equal(t, []uint{4}, shapedIDs(t, gdb, shape.Request{Filters: "score==2"}))
	assert.Equal(t, []uint{1, 3, 5}, shapedIDs(t, gdb, shape.Request{Filters: "score>=3"}))
	assert.Equal(t, []uint{2}, shapedIDs(t, gdb, shape.Request{Filters: "score<2"}))
	assert.Equal(t, []uint{2, 4}, shapedIDs(t, gdb, shape.Request{Filters: "score!=3"}))
	assert.Equal(t, []uint{2, 3, 4}, shapedIDs(t, gdb, shape.Request{Filters: "title@=an"}))
	assert.Equal(t, []uint{1, 3}, shapedIDs(t, gdb, shape.Request{Filters: "flag==true"}))
	assert.Equal(t, []uint{4, 5},
		shapedIDs(t, gdb, shape.Request{Filters: "created>=2024-05-01T15:00:00Z"}))
	assert.Equal(t, []uint{3, 5},
		shapedIDs(t, gdb, shape.Request{Filters: "score==3,title!=alpha"}),
		"comma-separated terms combine as AND")
}

func TestSortWithDeterministicTiebreak(t *testing.T) {
	gdb := seedItems(t)

	// Three rows tie on score 3; the id tiebreak pins their order.
	req := shape.Request{Sorts: "-score"}
	first := shapedIDs(t, gdb, req)
	assert.Equal(t, []uint{1, 3, 5, 4, 2}, first)

	// Shaping the identical request again yields the identical order.
	assert.Equal(t, first, shapedIDs(t, gdb, req))

	assert.Equal(t, []uint{2, 4, 1, 3, 5}, shapedIDs(t, gdb, shape.Request{Sorts: "score"}))
	assert.Equal(t, []uint{5, 4, 3, 2, 1}, shapedIDs(t, gdb, shape.Request{Sorts: "-created"}))
}

func TestBadShapingInput(t *testing.T) {
	gdb := seedItems(t)

	cases := []shape.Request{
		{Filters: "bogus==1"},         // unknown field
		{Sorts: "bogus"},              // unknown sort field
		{Filters: "title"},            // no operator
		{Filters: "score@=3"},         // LIKE on a non-string field
		{Filters: "score==many"},      // unparsable int
		{Filters: "flag==perhaps"},    // unparsable bool
		{Filters: "created>=someday"}, // unparsable time
	}
	for _, req := range cases {
		_, err := shape.ApplyFilterAndSort(req, itemFields, gdb.Model(&item{}))
		require.Error(t, err, "request %+v", req)
		var serr *shape.Error
		assert.ErrorAs(t, err, &serr)
		assert.NotEmpty(t, serr.Term)
	}
}

func TestPaginationPartitionsShapedOrder(t *testing.T) {
	gdb := seedItems(t)

	var all []uint
	for page := 1; page <= 3; page++ {
		req := shape.Request{Sorts: "-score", Page: page, Size: 2}
		q, err := shape.ApplyFilterAndSort(req, itemFields, gdb.Model(&item{}))
		require.NoError(t, err)
		q = shape.ApplyPagination(req, 20, 100, q)

		var rows []item
		require.NoError(t, q.Find(&rows).Error)
		for _, r := range rows {
			all = append(all, r.ID)
		}
	}
	assert.Equal(t, []uint{1, 3, 5, 4, 2}, all, "pages concatenate to the unpaginated order")
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		req        shape.Request
		page, size int
	}{
		{shape.Request{}, 1, 20},
		{shape.Request{Page: -3, Size: 0}, 1, 20},
		{shape.Request{Page: 2, Size: 50}, 2, 50},
		{shape.Request{Page: 1, Size: 500}, 1, 100},
		{shape.Request{Page: 0, Size: -1}, 1, 20},
	}
	for _, tc := range cases {
		page, size := shape.ClampPage(tc.req, 20, 100)
		assert.Equal(t, tc.page, page, "request %+v", tc.req)
		assert.Equal(t, tc.size, size, "request %+v", tc.req)
	}
}
