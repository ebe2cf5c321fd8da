package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Filters_OmitsBlank(t *testing.T) {
	q := NewQuery()
	q.User = "alice"
	q.Category = "   "
	q.TraceID = "t-1"

	assert.Equal(t, []Filter{
		{Field: FieldUser, Value: "alice"},
		{Field: FieldTraceID, Value: "t-1"},
	}, q.Filters())

	assert.Empty(t, NewQuery().Filters())
}

func TestQuery_Ascending(t *testing.T) {
	tests := []struct {
		order string
		want  bool
	}{
		{"asc", true},
		{"ASC", true},
		{"Asc", true},
		{"desc", false},
		{"", false},
		{"ascending", false},
		{" asc", false},
	}
	for _, tt := range tests {
		t.Run(tt.order, func(t *testing.T) {
			assert.Equal(t, tt.want, Query{SortOrder: tt.order}.Ascending())
		})
	}
}

func TestQuery_SortField(t *testing.T) {
	assert.Equal(t, FieldTimestamp, Query{}.SortField())
	assert.Equal(t, FieldUser, Query{SortBy: "user"}.SortField())
	assert.Equal(t, FieldTimestamp, Query{SortBy: "user_name; DROP TABLE events"}.SortField())
}

func TestQuery_Paging(t *testing.T) {
	q := Query{Page: 3, Size: 25}
	assert.Equal(t, 25, q.Limit())
	assert.Equal(t, 75, q.Offset())

	assert.Equal(t, DefaultPageSize, Query{}.Limit())
	assert.Equal(t, 0, Query{Page: -1, Size: 5}.Offset())
}

func TestQuery_DecodeKeepsDefaults(t *testing.T) {
	q := NewQuery()
	require.NoError(t, json.Unmarshal([]byte(`{"user":"alice","startDate":"2024-01-01T00:00:00Z"}`), &q))

	assert.Equal(t, "alice", q.User)
	assert.Equal(t, DefaultSortBy, q.SortBy)
	assert.Equal(t, DefaultSortOrder, q.SortOrder)
	assert.Equal(t, 0, q.Page)
	assert.Equal(t, DefaultPageSize, q.Size)
	require.NotNil(t, q.StartDate)
	assert.True(t, q.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, q.EndDate)
	assert.True(t, q.HasTimeRange())
}

func TestQuery_Validate(t *testing.T) {
	assert.NoError(t, NewQuery().Validate())

	err := Query{Page: -1, Size: 0}.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "page")
	assert.Contains(t, verr.Fields, "size")
}

func TestQuery_ValidateRejectsOverflowingOffset(t *testing.T) {
	var q Query
	require.NoError(t, json.Unmarshal([]byte(`{"size":2000000000,"page":5000000000}`), &q))

	err := q.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields["page"], "must not exceed")

	assert.NoError(t, Query{Page: 1000, Size: 10000}.Validate())
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{100, 0, 0},
		{100, -5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.pageSize), "total=%d size=%d", tt.total, tt.pageSize)
	}
}

func TestNewQueryResult(t *testing.T) {
	q := Query{Page: 1, Size: 2}
	res := NewQueryResult(Page{Total: 5}, q)

	assert.NotNil(t, res.Items)
	assert.Equal(t, int64(5), res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 2, res.PageSize)
	assert.Equal(t, 3, res.TotalPages)
}
