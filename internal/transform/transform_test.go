package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/grammar"
	"github.com/roach88/quarry/internal/ir"
)

func mustParse(t *testing.T, text string) grammar.Node {
	t.Helper()
	node, err := grammar.Parse(text)
	require.NoError(t, err)
	return node
}

func TestApply_Precedence(t *testing.T) {
	e, err := Apply(mustParse(t, "a = 1 or b = 2 and c = 3"))
	require.NoError(t, err)

	or, ok := e.(*expr.Conjunction)
	require.True(t, ok)
	assert.Equal(t, expr.Or, or.Op)
	assert.Equal(t, "a = 1", or.Left.String())

	and, ok := or.Right.(*expr.Conjunction)
	require.True(t, ok)
	assert.Equal(t, expr.And, and.Op)
	assert.Equal(t, "b = 2", and.Left.String())
	assert.Equal(t, "c = 3", and.Right.String())
}

func TestApply_GroupIsTransparent(t *testing.T) {
	e, err := Apply(mustParse(t, "((id = 1))"))
	require.NoError(t, err)
	assert.Equal(t, expr.NewPredicate("id", expr.OpEq, ir.Int(1)), e)
}

func TestApply_Values(t *testing.T) {
	date, _ := ir.ParseDate("2024-01-02")
	at, _ := ir.ParseDateTime("2024-01-02T03:04:05Z")

	tests := []struct {
		text string
		want *expr.Predicate
	}{
		{"id = 6", expr.NewPredicate("id", expr.OpEq, ir.Int(6))},
		{"score < 1.5", expr.NewPredicate("score", expr.OpLt, ir.Float(1.5))},
		{"ok = False", expr.NewPredicate("ok", expr.OpEq, ir.Bool(false))},
		{`name = "a\tb\"c\\"`, expr.NewPredicate("name", expr.OpEq, ir.String("a\tb\"c\\"))},
		{"born = 2024-01-02", expr.NewPredicate("born", expr.OpEq, date)},
		{"at >= 2024-01-02T03:04:05Z", expr.NewPredicate("at", expr.OpGte, at)},
		{"id in (1, 2)", expr.NewPredicate("id", expr.OpIn, ir.List{ir.Int(1), ir.Int(2)})},
		{`id not in ("a")`, expr.NewPredicate("id", expr.OpNotIn, ir.List{ir.String("a")})},
		{"age between 1 and 2", expr.NewPredicate("age", expr.OpBetween, ir.List{ir.Int(1), ir.Int(2)})},
		{`name not like "x%"`, expr.NewPredicate("name", expr.OpNotLike, ir.String("x%"))},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			e, err := Apply(mustParse(t, tt.text))
			require.NoError(t, err)
			assert.Equal(t, tt.want, e)
			assert.NoError(t, expr.Validate(e))
		})
	}
}

func TestApply_NormalizesStrings(t *testing.T) {
	e, err := Apply(mustParse(t, "name = \"cafe\u0301\""))
	require.NoError(t, err)
	assert.Equal(t, ir.String("caf\u00e9"), e.(*expr.Predicate).Value)
}

func TestApply_LiteralErrors(t *testing.T) {
	tests := []string{
		"id = 99999999999999999999",
		"born = 2024-13-01",
		"at = 2024-01-02T25:00:00Z",
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := Apply(mustParse(t, text))
			require.Error(t, err)
			var lerr *LiteralError
			assert.ErrorAs(t, err, &lerr)
		})
	}
}

func TestApply_ShapeErrors(t *testing.T) {
	lit := &grammar.Literal{Kind: grammar.LitInt, Raw: "1"}
	tests := []struct {
		name string
		node grammar.Node
	}{
		{"nil", nil},
		{"bare literal", lit},
		{"order term", &grammar.OrderTerm{Path: []string{"id"}}},
		{"empty group", &grammar.Group{}},
		{"unknown op", &grammar.DomainExpr{Path: []string{"id"}, Op: "~", Value: lit}},
		{"in with literal", &grammar.DomainExpr{Path: []string{"id"}, Op: "in", Value: lit}},
		{"eq with list", &grammar.DomainExpr{Path: []string{"id"}, Op: "=", Value: &grammar.List{Items: []*grammar.Literal{lit}}}},
		{"eq with range", &grammar.DomainExpr{Path: []string{"id"}, Op: "=", Value: &grammar.Range{Low: lit, High: lit}}},
		{"empty list", &grammar.DomainExpr{Path: []string{"id"}, Op: "in", Value: &grammar.List{}}},
		{"bad logic", &grammar.BoolExpr{Op: "xor", Left: lit, Right: lit}},
		{"no path", &grammar.DomainExpr{Op: "=", Value: lit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Apply(tt.node)
			require.Error(t, err)
			assert.Nil(t, e)
			var serr *ShapeError
			assert.ErrorAs(t, err, &serr)
		})
	}
}

func TestApplySearch(t *testing.T) {
	parsed, err := grammar.ParseSearch(`foo.bar filter id = 6 and name = "foo" order id desc limit 6`)
	require.NoError(t, err)

	s, err := ApplySearch(parsed)
	require.NoError(t, err)

	assert.Equal(t, "foo.bar", s.Domain)
	assert.Equal(t, `(id = 6 and name = "foo")`, s.Filter.String())
	assert.Equal(t, []expr.OrderTerm{{Path: []string{"id"}, Direction: expr.Desc}}, s.Order)
	require.NotNil(t, s.Limit)
	assert.Equal(t, 6, *s.Limit)
}

func TestApplySearch_Minimal(t *testing.T) {
	parsed, err := grammar.ParseSearch("global.user order name")
	require.NoError(t, err)

	s, err := ApplySearch(parsed)
	require.NoError(t, err)
	assert.Nil(t, s.Filter)
	assert.Nil(t, s.Limit)
	assert.Equal(t, expr.Asc, s.Order[0].Direction)
}

func TestApplySearch_Shape(t *testing.T) {
	_, err := ApplySearch(nil)
	assert.Error(t, err)

	_, err = ApplySearch(&grammar.Search{Domain: []string{"post"}})
	assert.Error(t, err)

	_, err = ApplySearch(&grammar.Search{Domain: []string{"a", "b"}, Limit: &grammar.Literal{Kind: grammar.LitFloat, Raw: "1.5"}})
	assert.Error(t, err)
}

func TestUnescape(t *testing.T) {
	got, err := Unescape(`a\0b\n\r`)
	require.NoError(t, err)
	assert.Equal(t, "a\x00b\n\r", got)

	_, err = Unescape(`a\`)
	assert.Error(t, err)
	_, err = Unescape(`a\x`)
	assert.Error(t, err)
}
