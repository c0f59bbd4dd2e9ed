package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/quarry/internal/ir"
)

func TestIsQualified(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"id", false},
		{"author.name", false},
		{"features.blog.post.id", true},
		{"features.blog.post", false},
		{"global.user.id", true},
		{"global.user", false},
		{"global", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsQualified(SplitPath(tt.path)))
		})
	}
}

func TestPredicateQualifyFeature(t *testing.T) {
	p := NewPredicate("author.name", OpEq, ir.String("x"))

	q := p.QualifyFeature("blog", "post").(*Predicate)

	assert.Equal(t, []string{"features", "blog", "post", "author", "name"}, q.Path)
	assert.Equal(t, []string{"author", "name"}, p.Path, "original untouched")
}

func TestPredicateQualifyGlobal(t *testing.T) {
	p := NewPredicate("id", OpEq, ir.Int(1))

	q := p.QualifyGlobal("user").(*Predicate)

	assert.Equal(t, "global.user.id", q.Attribute())
}

func TestQualifyIsIdempotent(t *testing.T) {
	p := NewPredicate("id", OpEq, ir.Int(1))

	once := p.QualifyFeature("blog", "post")
	twice := once.QualifyFeature("blog", "post")
	other := once.QualifyGlobal("user")

	assert.Equal(t, once, twice)
	assert.Equal(t, once, other)
}

func TestConjunctionQualifiesOnlyUnqualifiedBranches(t *testing.T) {
	foreign := NewPredicate("global.user.id", OpEq, ir.Int(7))
	local := NewPredicate("author_id", OpEq, ir.Int(7))
	c := &Conjunction{Op: And, Left: local, Right: foreign}

	assert.False(t, c.Qualified())

	q := c.QualifyFeature("blog", "post").(*Conjunction)

	assert.True(t, q.Qualified())
	assert.Equal(t, "features.blog.post.author_id", q.Left.(*Predicate).Attribute())
	assert.Equal(t, "global.user.id", q.Right.(*Predicate).Attribute())
	assert.Equal(t, q, q.QualifyFeature("blog", "post"))
}

func TestOrderTermQualify(t *testing.T) {
	o := NewOrderTerm("created_at", Desc)

	q := o.QualifyFeature("blog", "post")
	assert.Equal(t, "features.blog.post.created_at desc", q.String())
	assert.Equal(t, q, q.QualifyFeature("blog", "post"))
	assert.Equal(t, "global.user.created_at desc", o.QualifyGlobal("user").String())
	assert.Equal(t, Asc, NewOrderTerm("id", "").Direction)
}

func TestSplitQualified(t *testing.T) {
	domain, attr, ok := SplitQualified(SplitPath("features.blog.post.author.name"))
	assert.True(t, ok)
	assert.Equal(t, "blog.post", domain)
	assert.Equal(t, "author.name", attr)

	domain, attr, ok = SplitQualified(SplitPath("global.user.id"))
	assert.True(t, ok)
	assert.Equal(t, "global.user", domain)
	assert.Equal(t, "id", attr)

	_, _, ok = SplitQualified(SplitPath("id"))
	assert.False(t, ok)
}
