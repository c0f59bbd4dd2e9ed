package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/grammar"
)

func TestParseSearch(t *testing.T) {
	c, err := ParseSearch(`foo.bar filter id = 6 and name = "foo" order id desc limit 6`)
	require.NoError(t, err)

	assert.Equal(t, "foo.bar", c.Domain().Name)
	assert.Equal(t, "foo", c.Domain().Feature)
	assert.Equal(t, "bar", c.Domain().Basename)

	conj, ok := c.Expression().(*expr.Conjunction)
	require.True(t, ok)
	assert.Equal(t, expr.And, conj.Op)
	assert.Equal(t, "features.foo.bar.id = 6", conj.Left.String())
	assert.Equal(t, `features.foo.bar.name = "foo"`, conj.Right.String())

	require.Len(t, c.Ordering(), 1)
	assert.Equal(t, "features.foo.bar.id desc", c.Ordering()[0].String())

	n, ok := c.MaxResults()
	assert.True(t, ok)
	assert.Equal(t, 6, n)
}

func TestParseSearch_Errors(t *testing.T) {
	_, err := ParseSearch("post filter id = 1")
	var perr *grammar.ParseError
	assert.ErrorAs(t, err, &perr)

	_, err = ParseSearch("blog.post limit 0")
	assert.True(t, errors.IsInvalidRequestError(err))

	_, err = ParseSearch("features.post")
	assert.True(t, errors.Is(err, errors.ErrInvalidDomain))
}

func TestFromMap(t *testing.T) {
	c, err := FromMap(map[string]any{
		"domain":   "blog.post",
		"filters":  []any{"published = true", "views > 10"},
		"order":    []any{map[string]any{"views": "desc"}},
		"limit":    float64(5),
		"page":     2,
		"per_page": int64(3),
	})
	require.NoError(t, err)

	assert.Equal(t, "blog.post filter (features.blog.post.published = true and features.blog.post.views > 10) order features.blog.post.views desc limit 5", c.String())
	assert.Equal(t, 2, c.PageNumber())
	assert.Equal(t, 3, c.PageSize())
}

func TestFromMap_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		is   error
	}{
		{"no domain", map[string]any{}, errors.ErrInvalidRequest},
		{"domain not string", map[string]any{"domain": 1}, errors.ErrInvalidRequest},
		{"bare domain", map[string]any{"domain": "post"}, errors.ErrInvalidDomain},
		{"unknown key", map[string]any{"domain": "a.b", "where": "x"}, errors.ErrInvalidRequest},
		{"fractional limit", map[string]any{"domain": "a.b", "limit": 1.5}, errors.ErrInvalidRequest},
		{"string limit", map[string]any{"domain": "a.b", "limit": "5"}, errors.ErrInvalidRequest},
		{"bad filter", map[string]any{"domain": "a.b", "filters": 7}, errors.ErrInvalidCriteria},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.is), "got %v", err)
		})
	}
}
