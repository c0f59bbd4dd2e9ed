package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/ir"
)

func TestExpressionSealed(t *testing.T) {
	var e Expression = NewPredicate("id", OpEq, ir.Int(1))

	switch e.(type) {
	case *Predicate:
	case *Conjunction:
		t.Fatal("unexpected type")
	}
}

func TestParseOperator(t *testing.T) {
	op, err := ParseOperator("NOT   In")
	require.NoError(t, err)
	assert.Equal(t, OpNotIn, op)

	op, err = ParseOperator(">=")
	require.NoError(t, err)
	assert.Equal(t, OpGte, op)

	_, err = ParseOperator("~")
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Asc, d)

	d, err = ParseDirection("DESC")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)

	_, err = ParseDirection("up")
	assert.Error(t, err)
}

func TestPredicateString(t *testing.T) {
	tests := []struct {
		name string
		pred *Predicate
		want string
	}{
		{"eq", NewPredicate("id", OpEq, ir.Int(6)), "id = 6"},
		{"string", NewPredicate("name", OpEq, ir.String("foo")), `name = "foo"`},
		{"in", NewPredicate("id", OpIn, ir.List{ir.Int(1), ir.Int(2)}), "id in (1, 2)"},
		{"between", NewPredicate("age", OpBetween, ir.List{ir.Int(1), ir.Int(9)}), "age between 1 and 9"},
		{"nested path", NewPredicate("author.name", OpLike, ir.String("a%")), `author.name like "a%"`},
		{"negated", NewPredicate("id", OpEq, ir.Int(1)).Not(), "NOT id = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred.String())
		})
	}
}

func TestConjunctionString(t *testing.T) {
	c := &Conjunction{
		Op:   Or,
		Left: NewPredicate("a", OpEq, ir.Int(1)),
		Right: &Conjunction{
			Op:    And,
			Left:  NewPredicate("b", OpEq, ir.Int(2)),
			Right: NewPredicate("c", OpEq, ir.Int(3)),
		},
	}
	assert.Equal(t, "(a = 1 or (b = 2 and c = 3))", c.String())
}

func TestNotDoesNotMutate(t *testing.T) {
	p := NewPredicate("id", OpEq, ir.Int(1))
	n := p.Not()

	assert.False(t, p.Negated)
	assert.True(t, n.Negated)
	assert.False(t, n.Not().Negated)
}

func TestNotConjunctionDeMorgan(t *testing.T) {
	c := &Conjunction{Op: And, Left: NewPredicate("a", OpEq, ir.Int(1)), Right: NewPredicate("b", OpEq, ir.Int(2))}

	got := Not(c)

	assert.Equal(t, "(NOT a = 1 or NOT b = 2)", got.String())
}

func TestCombine(t *testing.T) {
	a := NewPredicate("a", OpEq, ir.Int(1))
	b := NewPredicate("b", OpEq, ir.Int(2))

	assert.Same(t, a, Combine(And, nil, a))
	assert.Same(t, a, Combine(Or, a, nil))
	assert.Nil(t, Combine(And, nil, nil))
	assert.Equal(t, "(a = 1 and b = 2)", Combine(And, a, b).String())
}

func TestWalk(t *testing.T) {
	c := Combine(Or, NewPredicate("a", OpEq, ir.Int(1)),
		Combine(And, NewPredicate("b", OpEq, ir.Int(2)), NewPredicate("c", OpEq, ir.Int(3))))

	var seen []string
	Walk(c, func(p *Predicate) { seen = append(seen, p.Attribute()) })

	assert.Equal(t, []string{"a", "b", "c"}, seen)
}
