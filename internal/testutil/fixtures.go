// Package testutil provides shared fixtures for package tests: a sealed
// mapping registry for a small blog domain and seeded row sets.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/entity"
	"github.com/roach88/quarry/internal/mapping"
	"github.com/roach88/quarry/internal/storage"
)

// Root is the application root every fixture storage map belongs to.
const Root = "app"

// Slugify lowercases a title and joins its words with dashes.
func Slugify(v any, _ entity.Entity) (any, error) {
	s, _ := v.(string)
	return strings.Join(strings.Fields(strings.ToLower(s)), "-"), nil
}

// PostSpec declares blog.post for kind under key:
//
//	id          -> post_id
//	title       -> title
//	views       -> views
//	author.name -> author_name
//	slug        -> slug (computed from the title)
//	draft       (skipped)
func PostSpec(kind mapping.Kind, key string) mapping.Spec {
	return mapping.Spec{
		Domain: "blog.post",
		Kind:   kind,
		Key:    key,
		Root:   Root,
		Attributes: []mapping.AttributeSpec{
			{Name: "id", Column: "post_id"},
			{Name: "title"},
			{Name: "views"},
			{Name: "author.name"},
			{Name: "slug", Compute: func(_ any, ent entity.Entity) (any, error) {
				title, _ := entity.Dig(ent, "title")
				return Slugify(title, ent)
			}},
			{Name: "draft", Skip: true},
		},
	}
}

// UserSpec declares global.user for kind under key, owned by root.
func UserSpec(kind mapping.Kind, key, root string) mapping.Spec {
	return mapping.Spec{
		Domain:     "global.user",
		Kind:       kind,
		Key:        key,
		Root:       root,
		Attributes: []mapping.AttributeSpec{{Name: "id"}, {Name: "name"}},
	}
}

// Registry returns a sealed registry holding PostSpec for every kind and
// UserSpec (relational, owned by "accounts").
func Registry(t testing.TB) *mapping.Registry {
	t.Helper()
	reg := mapping.NewRegistry()
	for _, kind := range []mapping.Kind{mapping.KindRelational, mapping.KindMemory, mapping.KindFile} {
		require.NoError(t, reg.Register(PostSpec(kind, "posts")))
	}
	require.NoError(t, reg.Register(UserSpec(mapping.KindRelational, "users", "accounts")))
	reg.Seal()
	return reg
}

// PostRows returns n post rows with ids 1..n. Views are id*10, authors
// alternate between "ann" and "bo".
func PostRows(n int) []storage.Row {
	rows := make([]storage.Row, n)
	for i := range rows {
		id := int64(i + 1)
		author := "ann"
		if id%2 == 0 {
			author = "bo"
		}
		title := fmt.Sprintf("Post %02d", id)
		rows[i] = storage.Row{
			"post_id":     id,
			"title":       title,
			"views":       id * 10,
			"author_name": author,
			"slug":        fmt.Sprintf("post-%02d", id),
		}
	}
	return rows
}
