package mapper

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/entity"
	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/mapping"
	"github.com/roach88/quarry/internal/storage"
	"github.com/roach88/quarry/internal/storage/memory"
)

func upper(v any, _ entity.Entity) (any, error) {
	s, _ := v.(string)
	return strings.ToUpper(s), nil
}

func newRegistry(t *testing.T) *mapping.Registry {
	t.Helper()
	reg := mapping.NewRegistry()
	require.NoError(t, reg.Register(mapping.Spec{
		Domain: "blog.post",
		Kind:   mapping.KindRelational,
		Key:    "posts",
		Root:   "app",
		Attributes: []mapping.AttributeSpec{
			{Name: "id", Column: "post_id"},
			{Name: "title"},
			{Name: "author.name"},
			{Name: "author.email"},
			{Name: "slug", Compute: upper},
			{Name: "draft", Skip: true},
		},
	}))
	require.NoError(t, reg.Register(mapping.Spec{
		Domain:     "global.user",
		Kind:       mapping.KindRelational,
		Key:        "users",
		Root:       "accounts",
		Attributes: []mapping.AttributeSpec{{Name: "id"}, {Name: "name"}},
	}))
	reg.Seal()
	return reg
}

func qualified(path string, op expr.Operator, v ir.Value) *expr.Predicate {
	return expr.NewPredicate("features.blog.post."+path, op, v)
}

func TestResolveColumn(t *testing.T) {
	m := New("app", newRegistry(t))

	tests := []struct {
		name    string
		pred    *expr.Predicate
		want    string
		wantErr error
	}{
		{"renamed column", qualified("id", expr.OpEq, ir.Int(1)), "posts.post_id", nil},
		{"default column", qualified("title", expr.OpEq, ir.String("x")), "posts.title", nil},
		{"nested attribute", qualified("author.name", expr.OpEq, ir.String("x")), "posts.author_name", nil},
		{"unknown attribute", qualified("missing", expr.OpEq, ir.Int(1)), "", errors.ErrUnknownAttribute},
		{"skipped attribute", qualified("draft", expr.OpEq, ir.Bool(true)), "", errors.ErrUnknownAttribute},
		{"unqualified", expr.NewPredicate("id", expr.OpEq, ir.Int(1)), "", errors.ErrInvalidCriteria},
		{"unknown domain", expr.NewPredicate("features.shop.order.id", expr.OpEq, ir.Int(1)), "", errors.ErrUnknownEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ResolveColumn(mapping.KindRelational, tt.pred)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCrossRootAlwaysFails(t *testing.T) {
	reg := newRegistry(t)
	m := New("app", reg)

	_, err := m.ResolveColumn(mapping.KindRelational, expr.NewPredicate("global.user.id", expr.OpEq, ir.Int(1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCrossRoot))

	_, err = m.ToEntityHash("global.user", mapping.KindRelational, storage.Row{"id": 1})
	assert.True(t, errors.Is(err, errors.ErrCrossRoot))

	_, err = m.ToStorage(entity.NewRecord("global.user", nil), mapping.KindRelational)
	assert.True(t, errors.Is(err, errors.ErrCrossRoot))

	accounts := New("accounts", reg)
	col, err := accounts.ResolveColumn(mapping.KindRelational, expr.NewPredicate("global.user.id", expr.OpEq, ir.Int(1)))
	require.NoError(t, err)
	assert.Equal(t, "users.id", col)
}

func TestResolveKeepsStructure(t *testing.T) {
	m := New("app", newRegistry(t))
	e := expr.Combine(expr.Or,
		qualified("id", expr.OpEq, ir.Int(1)),
		expr.Combine(expr.And,
			qualified("title", expr.OpLike, ir.String("go%")).Not(),
			qualified("author.email", expr.OpIn, ir.NewList(ir.String("a"), ir.String("b"))),
		),
	)

	got, err := m.Resolve(mapping.KindRelational, e)
	require.NoError(t, err)

	want := storage.Junction{
		Op:   expr.Or,
		Left: storage.Compare{Column: "posts.post_id", Op: expr.OpEq, Value: ir.Int(1)},
		Right: storage.Junction{
			Op:    expr.And,
			Left:  storage.Compare{Column: "posts.title", Op: expr.OpLike, Value: ir.String("go%"), Negated: true},
			Right: storage.Compare{Column: "posts.author_email", Op: expr.OpIn, Value: ir.NewList(ir.String("a"), ir.String("b"))},
		},
	}
	assert.Equal(t, want, got)

	none, err := m.Resolve(mapping.KindRelational, nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = m.Resolve(mapping.KindRelational, expr.Combine(expr.And, qualified("id", expr.OpEq, ir.Int(1)), qualified("nope", expr.OpEq, ir.Int(1))))
	assert.True(t, errors.Is(err, errors.ErrUnknownAttribute))
}

func TestResolveOrder(t *testing.T) {
	m := New("app", newRegistry(t))
	sorts, err := m.ResolveOrder(mapping.KindRelational, []expr.OrderTerm{
		expr.NewOrderTerm("features.blog.post.title", expr.Asc),
		expr.NewOrderTerm("features.blog.post.id", expr.Desc),
	})
	require.NoError(t, err)
	assert.Equal(t, []storage.Sort{
		{Column: "posts.title"},
		{Column: "posts.post_id", Desc: true},
	}, sorts)

	_, err = m.ResolveOrder(mapping.KindRelational, []expr.OrderTerm{expr.NewOrderTerm("title", expr.Asc)})
	assert.Error(t, err)
}

func TestToStorage(t *testing.T) {
	m := New("app", newRegistry(t))
	post := entity.NewRecord("blog.post", map[string]any{
		"id":     int64(7),
		"title":  "Hello",
		"author": map[string]any{"name": "Ann"},
		"slug":   "hello",
		"draft":  true,
	})

	row, err := m.ToStorage(post, mapping.KindRelational)
	require.NoError(t, err)
	assert.Equal(t, storage.Row{
		"post_id":      int64(7),
		"title":        "Hello",
		"author_name":  "Ann",
		"author_email": nil,
		"slug":         "HELLO",
	}, row)

	t.Run("exclude", func(t *testing.T) {
		row, err := m.ToStorage(post, mapping.KindRelational, "id", "author.email")
		require.NoError(t, err)
		assert.NotContains(t, row, "post_id")
		assert.NotContains(t, row, "author_email")
		assert.Contains(t, row, "title")
	})

	t.Run("missing intermediate segment is nil", func(t *testing.T) {
		row, err := m.ToStorage(entity.NewRecord("blog.post", map[string]any{"id": int64(1)}), mapping.KindRelational)
		require.NoError(t, err)
		assert.Nil(t, row["author_name"])
		assert.Contains(t, row, "author_name")
	})

	t.Run("compute failure", func(t *testing.T) {
		reg := mapping.NewRegistry()
		require.NoError(t, reg.Register(mapping.Spec{
			Domain: "blog.tag", Kind: mapping.KindMemory, Key: "tags", Root: "app",
			Attributes: []mapping.AttributeSpec{{Name: "name", Compute: func(any, entity.Entity) (any, error) {
				return nil, errors.New("boom")
			}}},
		}))
		_, err := New("app", reg).ToStorage(entity.NewRecord("blog.tag", nil), mapping.KindMemory)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "compute blog.tag.name")
	})
}

func TestToEntityHashMergesPrefixes(t *testing.T) {
	m := New("app", newRegistry(t))
	hash, err := m.ToEntityHash("blog.post", mapping.KindRelational, storage.Row{
		"post_id":      int64(7),
		"title":        "Hello",
		"author_name":  "Ann",
		"author_email": "ann@example.com",
		"unmapped":     "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":    int64(7),
		"title": "Hello",
		"author": map[string]any{
			"name":  "Ann",
			"email": "ann@example.com",
		},
	}, hash)
}

func TestRoundTrip(t *testing.T) {
	m := New("app", newRegistry(t))
	attrs := map[string]any{
		"id":    int64(3),
		"title": "Round trip",
		"author": map[string]any{
			"name":  "Bo",
			"email": "bo@example.com",
		},
	}
	row, err := m.ToStorage(entity.NewRecord("blog.post", attrs), mapping.KindRelational, "slug")
	require.NoError(t, err)

	hash, err := m.ToEntityHash("blog.post", mapping.KindRelational, row)
	require.NoError(t, err)
	assert.Equal(t, attrs, hash)
}

func TestSetPathConflict(t *testing.T) {
	dst := map[string]any{"a": "scalar"}
	assert.Error(t, setPath(dst, []string{"a", "b"}, 1))

	dst = map[string]any{"a": map[string]any{"b": 1}}
	assert.Error(t, setPath(dst, []string{"a"}, 1))
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	m := New("app", newRegistry(t))
	store := memory.New()
	store.Load("posts", []storage.Row{{"post_id": int64(1), "title": "Hello"}})

	ok, err := m.Exists(ctx, store, mapping.KindRelational, qualified("title", expr.OpEq, ir.String("Hello")))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Exists(ctx, store, mapping.KindRelational, qualified("id", expr.OpEq, ir.Int(2)))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Exists(ctx, store, mapping.KindRelational, expr.NewPredicate("title", expr.OpEq, ir.String("Hello")))
	assert.True(t, errors.Is(err, errors.ErrInvalidCriteria))
}
