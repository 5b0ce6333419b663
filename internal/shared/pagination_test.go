package shared

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSortable = map[string]string{
	"createdAt": "created_at",
	"email":     "email",
}

func TestParsePageRequestDefaults(t *testing.T) {
	req, err := ParsePageRequest(url.Values{}, testSortable, "created_at", true)
	require.NoError(t, err)
	assert.Equal(t, 0, req.Page)
	assert.Equal(t, DefaultPageSize, req.Size)
	assert.Equal(t, "created_at", req.SortColumn)
	assert.True(t, req.SortDesc)
}

func TestParsePageRequestExplicit(t *testing.T) {
	values := url.Values{}
	values.Set("page", "2")
	values.Set("size", "5")
	values.Set("sort", "email,asc")

	req, err := ParsePageRequest(values, testSortable, "created_at", true)
	require.NoError(t, err)
	assert.Equal(t, 2, req.Page)
	assert.Equal(t, 5, req.Size)
	assert.Equal(t, "email", req.SortColumn)
	assert.False(t, req.SortDesc)
	assert.Equal(t, 10, req.Offset())
}

func TestParsePageRequestSortDescending(t *testing.T) {
	values := url.Values{}
	values.Set("sort", "createdAt,desc")

	req, err := ParsePageRequest(values, testSortable, "email", false)
	require.NoError(t, err)
	assert.Equal(t, "created_at", req.SortColumn)
	assert.True(t, req.SortDesc)
}

func TestParsePageRequestRejectsUnknownSortField(t *testing.T) {
	values := url.Values{}
	values.Set("sort", "password,asc")

	_, err := ParsePageRequest(values, testSortable, "created_at", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParsePageRequestRejectsBadNumbers(t *testing.T) {
	for _, tc := range []struct{ key, value string }{
		{"page", "-1"},
		{"page", "abc"},
		{"size", "0"},
		{"size", "101"},
	} {
		values := url.Values{}
		values.Set(tc.key, tc.value)
		_, err := ParsePageRequest(values, testSortable, "created_at", true)
		assert.ErrorIs(t, err, ErrValidation, "%s=%s", tc.key, tc.value)
	}
}

func TestNewPageComputesTotals(t *testing.T) {
	page := NewPage([]string{"a"}, PageRequest{Page: 0, Size: 1}, 2)
	assert.Equal(t, 2, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 1)
}

func TestNewPageNilItemsBecomesEmptySlice(t *testing.T) {
	page := NewPage[string](nil, PageRequest{Page: 0, Size: 10}, 0)
	require.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalPages)
}
