package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type author struct {
	name string
}

func (a *author) Domain() string { return "global.author" }

func (a *author) Attribute(name string) (any, bool) {
	if name == "name" {
		return a.name, true
	}
	return nil, false
}

func TestRecord(t *testing.T) {
	r := NewRecord("blog.post", map[string]any{"id": 1, "title": "x"})

	assert.Equal(t, "blog.post", r.Domain())
	v, ok := r.Attribute("title")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = r.Attribute("missing")
	assert.False(t, ok)
	assert.True(t, IsPresent(r))
	assert.Equal(t, "blog.post{id=1 title=x}", r.String())
}

func TestRecordConstructor(t *testing.T) {
	e, err := RecordConstructor("blog.post")(map[string]any{"id": 2})
	require.NoError(t, err)
	assert.Equal(t, "blog.post", e.Domain())
}

func TestNotFound(t *testing.T) {
	n := NewNotFound("blog.post")

	assert.Equal(t, "blog.post", n.Domain())
	assert.False(t, IsPresent(n))
	for _, attr := range []string{"id", "title", ""} {
		v, ok := n.Attribute(attr)
		assert.False(t, ok)
		assert.Nil(t, v)
	}
	assert.False(t, IsPresent(nil))
}

func TestDig(t *testing.T) {
	post := NewRecord("blog.post", map[string]any{
		"id":     1,
		"author": &author{name: "ada"},
		"meta":   map[string]any{"tags": map[string]any{"main": "go"}},
		"draft":  nil,
	})

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"id", 1, true},
		{"author.name", "ada", true},
		{"author.email", nil, false},
		{"meta.tags.main", "go", true},
		{"meta.tags.main.deeper", nil, false},
		{"missing.anything", nil, false},
		{"draft", nil, true},
		{"draft.title", nil, false},
		{"id.value", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Dig(post, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDigThroughNotFound(t *testing.T) {
	post := NewRecord("blog.post", map[string]any{"author": NewNotFound("global.author")})

	_, ok := Dig(post, "author.name")
	assert.False(t, ok)
}
