package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dossier/pkg/domain-errors"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := New(0, 0)
		require.NoError(t, err)
		assert.Equal(t, Params{Page: 1, PageSize: DefaultPageSize}, p)
	})

	t.Run("clamps page size", func(t *testing.T) {
		p, err := New(2, 500)
		require.NoError(t, err)
		assert.Equal(t, MaxPageSize, p.PageSize)
		assert.Equal(t, MaxPageSize, p.Offset())
	})

	t.Run("negative values are validation errors", func(t *testing.T) {
		_, err := New(-1, 10)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = New(1, -5)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestSlice(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	page := Slice(all, Params{Page: 2, PageSize: 2})
	assert.Equal(t, []int{3, 4}, page.Data)
	assert.Equal(t, 5, page.Total)

	last := Slice(all, Params{Page: 3, PageSize: 2})
	assert.Equal(t, []int{5}, last.Data)

	beyond := Slice(all, Params{Page: 9, PageSize: 2})
	assert.Empty(t, beyond.Data)
	assert.NotNil(t, beyond.Data)
	assert.Equal(t, 5, beyond.Total)
}

func TestFromQuery(t *testing.T) {
	p, err := FromQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, Params{Page: 1, PageSize: DefaultPageSize}, p)

	p, err = FromQuery(url.Values{"page": {"3"}, "page_size": {"250"}})
	require.NoError(t, err)
	assert.Equal(t, Params{Page: 3, PageSize: MaxPageSize}, p)

	for _, q := range []url.Values{
		{"page": {"0"}},
		{"page": {"-1"}},
		{"page_size": {"0"}},
		{"page_size": {"ten"}},
	} {
		_, err := FromQuery(q)
		require.Error(t, err, q.Encode())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	}
}
