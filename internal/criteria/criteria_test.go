package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/grammar"
	"github.com/roach88/quarry/internal/ir"
)

func mustNew(t *testing.T, domain string) *Criteria {
	t.Helper()
	c, err := New(domain)
	require.NoError(t, err)
	return c
}

func TestParseDomain(t *testing.T) {
	tests := []struct {
		name     string
		feature  string
		basename string
		global   bool
	}{
		{"blog.post", "blog", "post", false},
		{"global.user", "", "user", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDomain(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.feature, d.Feature)
			assert.Equal(t, tt.basename, d.Basename)
			assert.Equal(t, tt.global, d.Global())
			assert.Equal(t, tt.name, d.String())
		})
	}
}

func TestParseDomain_Invalid(t *testing.T) {
	for _, name := range []string{"post", "", ".post", "blog.", "Blog.post", "blog.post.extra", "features.post"} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDomain(name)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidDomain))

			_, err = New(name)
			assert.Error(t, err)
		})
	}
}

func TestDefaults(t *testing.T) {
	c := mustNew(t, "blog.post")

	assert.Equal(t, 1, c.PageNumber())
	assert.Equal(t, DefaultPerPage, c.PageSize())
	assert.Equal(t, ModePage, c.Mode())
	assert.False(t, c.PaginationDisabled())
	assert.False(t, c.ErrorOnEmpty())
	assert.Nil(t, c.Expression())
	_, ok := c.MaxResults()
	assert.False(t, ok)
	assert.NoError(t, c.Err())
}

func TestFluentChainIdentity(t *testing.T) {
	c := mustNew(t, "blog.post")

	chain := []func() *Criteria{
		func() *Criteria { return c.Filter("id = 1") },
		func() *Criteria { return c.FilterWith(expr.Or, "id = 2") },
		func() *Criteria { return c.Order("id desc") },
		func() *Criteria { return c.Limit(5) },
		func() *Criteria { return c.Page(2) },
		func() *Criteria { return c.PerPage(10) },
		func() *Criteria { return c.DisablePagination() },
		func() *Criteria { return c.First() },
		func() *Criteria { return c.Last() },
		func() *Criteria { return c.All() },
		func() *Criteria { return c.Exec("popular") },
		func() *Criteria { return c.AddParam("k", "v") },
		func() *Criteria { return c.ErrorOnEmptyDataset() },
		func() *Criteria { return c.Limit(-1) },
		func() *Criteria { return c.Filter("broken =") },
	}
	for i, fn := range chain {
		assert.Same(t, c, fn(), "mutator %d", i)
	}
}

func TestFilterQualifiesAndCombines(t *testing.T) {
	c := mustNew(t, "blog.post").
		Filter("id = 6").
		Filter(`name = "foo"`)
	require.NoError(t, c.Err())

	assert.Equal(t, `(features.blog.post.id = 6 and features.blog.post.name = "foo")`, c.Expression().String())
	assert.True(t, c.Expression().Qualified())
}

func TestFilterWithOr(t *testing.T) {
	c := mustNew(t, "global.user").
		Filter("age > 18").
		FilterWith(expr.Or, "admin = true")
	require.NoError(t, c.Err())

	assert.Equal(t, "(global.user.age > 18 or global.user.admin = true)", c.Expression().String())
}

func TestFilterKeepsForeignNamespace(t *testing.T) {
	c := mustNew(t, "blog.post").Filter("author_id = 1 and global.user.active = true")
	require.NoError(t, c.Err())

	assert.Equal(t, "(features.blog.post.author_id = 1 and global.user.active = true)", c.Expression().String())
}

func TestFilterInputs(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"string", "id = 1", "features.blog.post.id = 1"},
		{"strings", []string{"id = 1", "id = 2"}, "(features.blog.post.id = 1 and features.blog.post.id = 2)"},
		{"any list", []any{"id = 1", expr.NewPredicate("id", expr.OpEq, ir.Int(2))}, "(features.blog.post.id = 1 and features.blog.post.id = 2)"},
		{"map", map[string]string{"b = 2": "or", "a = 1": "and"}, "(features.blog.post.a = 1 or features.blog.post.b = 2)"},
		{"any map", map[string]any{"a = 1": "AND"}, "features.blog.post.a = 1"},
		{"expression", expr.NewPredicate("id", expr.OpIn, ir.List{ir.Int(1)}), "features.blog.post.id in (1)"},
		{"negated", expr.NewPredicate("id", expr.OpEq, ir.Int(1)).Not(), "NOT features.blog.post.id = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustNew(t, "blog.post").Filter(tt.input)
			require.NoError(t, c.Err())
			assert.Equal(t, tt.want, c.Expression().String())
		})
	}
}

func TestFilterErrors(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"parse error", "id ="},
		{"unsupported type", 42},
		{"bad logic", map[string]string{"a = 1": "xor"}},
		{"non-string logic", map[string]any{"a = 1": 1}},
		{"invalid expression", expr.NewPredicate("id", expr.OpIn, ir.Int(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustNew(t, "blog.post").Filter(tt.input)
			assert.Error(t, c.Err())
		})
	}
}

func TestFilterParseErrorIsReachable(t *testing.T) {
	c := mustNew(t, "blog.post").Filter("id = = 1")

	var perr *grammar.ParseError
	require.ErrorAs(t, c.Err(), &perr)
	assert.Equal(t, 5, perr.Offset())
}

func TestFirstErrorWins(t *testing.T) {
	c := mustNew(t, "blog.post").Limit(0).Page(-1).Filter("id = 1")

	require.Error(t, c.Err())
	assert.Contains(t, c.Err().Error(), "limit")
	assert.True(t, errors.IsInvalidRequestError(c.Err()))
	assert.Nil(t, c.Expression())
}

func TestOrderInputs(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"string", "created_at desc, id", []string{"features.blog.post.created_at desc", "features.blog.post.id asc"}},
		{"strings", []string{"a", "b desc"}, []string{"features.blog.post.a asc", "features.blog.post.b desc"}},
		{"map", map[string]string{"b": "desc", "a": "asc"}, []string{"features.blog.post.a asc", "features.blog.post.b desc"}},
		{"list of maps", []map[string]string{{"b": "desc"}, {"a": ""}}, []string{"features.blog.post.b desc", "features.blog.post.a asc"}},
		{"any list", []any{"a", map[string]any{"b": "DESC"}}, []string{"features.blog.post.a asc", "features.blog.post.b desc"}},
		{"term", expr.NewOrderTerm("global.user.name", expr.Desc), []string{"global.user.name desc"}},
		{"terms", []expr.OrderTerm{expr.NewOrderTerm("id", "")}, []string{"features.blog.post.id asc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustNew(t, "blog.post").Order(tt.input)
			require.NoError(t, c.Err())

			var got []string
			for _, term := range c.Ordering() {
				got = append(got, term.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrderErrors(t *testing.T) {
	for _, input := range []any{"id sideways", map[string]string{"id": "up"}, map[string]any{"id": 1}, 3.5, "Id"} {
		c := mustNew(t, "blog.post").Order(input)
		assert.Error(t, c.Err(), "%v", input)
	}
}

func TestPaginationMutators(t *testing.T) {
	c := mustNew(t, "blog.post").Page(3).PerPage(15).Limit(40)
	require.NoError(t, c.Err())

	assert.Equal(t, 3, c.PageNumber())
	assert.Equal(t, 15, c.PageSize())
	n, ok := c.MaxResults()
	assert.True(t, ok)
	assert.Equal(t, 40, n)

	c.DisablePagination()
	assert.True(t, c.PaginationDisabled())
}

func TestPositiveIntegers(t *testing.T) {
	for _, tt := range []struct {
		name string
		fn   func(*Criteria) *Criteria
	}{
		{"limit zero", func(c *Criteria) *Criteria { return c.Limit(0) }},
		{"limit negative", func(c *Criteria) *Criteria { return c.Limit(-3) }},
		{"page zero", func(c *Criteria) *Criteria { return c.Page(0) }},
		{"per page zero", func(c *Criteria) *Criteria { return c.PerPage(0) }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.fn(mustNew(t, "blog.post"))
			assert.True(t, errors.IsInvalidRequestError(c.Err()))
		})
	}
}

func TestModesAreExclusive(t *testing.T) {
	c := mustNew(t, "blog.post")

	c.First()
	assert.Equal(t, ModeFirst, c.Mode())
	assert.True(t, c.Mode().Single())

	c.Last()
	assert.Equal(t, ModeLast, c.Mode())

	c.All()
	assert.Equal(t, ModeAll, c.Mode())
	assert.False(t, c.Mode().Single())
	assert.True(t, c.PaginationDisabled())

	c.First()
	assert.Equal(t, ModeFirst, c.Mode())
	assert.False(t, c.PaginationDisabled())
}

func TestExecAndParams(t *testing.T) {
	c := mustNew(t, "blog.post").Exec("popular").AddParam("since", 7)
	require.NoError(t, c.Err())

	assert.Equal(t, "popular", c.ExecName())
	v, ok := c.Param("since")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	_, ok = c.Param("missing")
	assert.False(t, ok)

	params := c.Params()
	params["since"] = 0
	v, _ = c.Param("since")
	assert.Equal(t, 7, v, "Params returns a copy")

	assert.Error(t, mustNew(t, "blog.post").Exec(" ").Err())
}

func TestString(t *testing.T) {
	c := mustNew(t, "blog.post").Filter("id = 6").Order("id desc").Limit(6)
	require.NoError(t, c.Err())

	assert.Equal(t, "blog.post filter features.blog.post.id = 6 order features.blog.post.id desc limit 6", c.String())
	assert.Equal(t, "global.user", mustNew(t, "global.user").String())
}

func TestStringRoundTrips(t *testing.T) {
	c := mustNew(t, "blog.post").Filter("id = 6 or name like \"a%\"").Order("id desc").Limit(6)
	require.NoError(t, c.Err())

	again, err := ParseSearch(c.String())
	require.NoError(t, err)
	assert.Equal(t, c.String(), again.String())
}
