package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/procflow/internal/apperr"
)

var props = SortProperties{"id": "id", "name": "name_"}

func TestParsePageDefaults(t *testing.T) {
	p, err := ParsePage(url.Values{}, "id", props)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Start)
	assert.Equal(t, DefaultSize, p.Size)
	assert.Equal(t, "id asc", p.OrderClause())
}

func TestParsePageRejectsUnknownSort(t *testing.T) {
	_, err := ParsePage(url.Values{"sort": {"bogus"}}, "id", props)
	require.Error(t, err)
	assert.True(t, apperr.IsIllegalArgument(err))
	assert.Contains(t, err.Error(), "'bogus' is not a valid property")
}

func TestParsePageRejectsBadNumbersAndOrder(t *testing.T) {
	for _, v := range []url.Values{{"start": {"x"}}, {"size": {"-2"}}, {"order": {"up"}}} {
		_, err := ParsePage(v, "id", props)
		assert.True(t, apperr.IsIllegalArgument(err), v.Encode())
	}
}

func TestPaginateSizeIsItemCount(t *testing.T) {
	p, err := ParsePage(url.Values{"sort": {"name"}, "order": {"DESC"}, "start": {"2"}}, "id", props)
	require.NoError(t, err)
	assert.Equal(t, "name_ desc", p.OrderClause())

	resp := Paginate(p, 12, []int{1, 2, 3}, func(i int) int { return i * 10 })
	assert.Equal(t, int64(12), resp.Total)
	assert.Equal(t, 3, resp.Size)
	assert.Equal(t, 2, resp.Start)
	assert.Equal(t, []int{10, 20, 30}, resp.Data)
}
