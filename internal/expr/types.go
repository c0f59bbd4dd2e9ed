package expr

import (
	"fmt"
	"strings"

	"github.com/roach88/quarry/internal/ir"
)

// Operator is a comparison operator.
type Operator string

const (
	OpEq         Operator = "="
	OpNotEq      Operator = "!="
	OpGt         Operator = ">"
	OpGte        Operator = ">="
	OpLt         Operator = "<"
	OpLte        Operator = "<="
	OpIn         Operator = "in"
	OpNotIn      Operator = "not in"
	OpLike       Operator = "like"
	OpNotLike    Operator = "not like"
	OpBetween    Operator = "between"
	OpNotBetween Operator = "not between"
)

var operators = map[Operator]bool{
	OpEq: true, OpNotEq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpNotIn: true, OpLike: true, OpNotLike: true,
	OpBetween: true, OpNotBetween: true,
}

// ParseOperator normalises s (case and inner whitespace) into an Operator.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.Join(strings.Fields(strings.ToLower(s)), " "))
	if !operators[op] {
		return "", fmt.Errorf("unknown operator %q", s)
	}
	return op, nil
}

// Logic is a boolean connective.
type Logic string

const (
	And Logic = "and"
	Or  Logic = "or"
)

// ParseLogic accepts "and" or "or" in any case.
func ParseLogic(s string) (Logic, error) {
	switch Logic(strings.ToLower(strings.TrimSpace(s))) {
	case And:
		return And, nil
	case Or:
		return Or, nil
	default:
		return "", fmt.Errorf("unknown logical operator %q", s)
	}
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc" or "desc" in any case. Empty means Asc.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q", s)
	}
}

// Expression is a sealed interface for filter trees.
//
// Implementations:
//   - *Predicate: path operator value
//   - *Conjunction: left and/or right
type Expression interface {
	expressionNode() // Marker method - seals interface to this package

	// Qualified reports whether every path in the tree is namespaced.
	Qualified() bool

	// QualifyFeature namespaces relative paths under features.<feature>.<basename>.
	QualifyFeature(feature, basename string) Expression

	// QualifyGlobal namespaces relative paths under global.<basename>.
	QualifyGlobal(basename string) Expression

	String() string
}

// Predicate is a single attribute comparison.
//
// Value shape depends on Op:
//   - in, not in: ir.List
//   - between, not between: ir.List with exactly two elements
//   - everything else: a scalar
type Predicate struct {
	Path    []string
	Op      Operator
	Value   ir.Value
	Negated bool
}

func (*Predicate) expressionNode() {}

// NewPredicate builds a predicate from a dotted path.
func NewPredicate(path string, op Operator, value ir.Value) *Predicate {
	return &Predicate{Path: SplitPath(path), Op: op, Value: value}
}

// Attribute returns the dotted path.
func (p *Predicate) Attribute() string {
	return strings.Join(p.Path, ".")
}

// Not returns a copy with the negated flag toggled.
func (p *Predicate) Not() *Predicate {
	cp := *p
	cp.Path = clonePath(p.Path)
	cp.Negated = !p.Negated
	return &cp
}

// String renders the predicate as query text, prefixed with NOT when negated.
func (p *Predicate) String() string {
	var value string
	switch p.Op {
	case OpBetween, OpNotBetween:
		if list, ok := p.Value.(ir.List); ok && len(list) == 2 {
			value = ir.Format(list[0]) + " and " + ir.Format(list[1])
		} else {
			value = ir.Format(p.Value)
		}
	default:
		value = ir.Format(p.Value)
	}
	s := p.Attribute() + " " + string(p.Op) + " " + value
	if p.Negated {
		return "NOT " + s
	}
	return s
}

// Conjunction combines two expressions with and/or.
type Conjunction struct {
	Op    Logic
	Left  Expression
	Right Expression
}

func (*Conjunction) expressionNode() {}

// Combine joins left and right with op. A nil side yields the other side.
func Combine(op Logic, left, right Expression) Expression {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	default:
		return &Conjunction{Op: op, Left: left, Right: right}
	}
}

// String renders the conjunction in parentheses.
func (c *Conjunction) String() string {
	return "(" + c.Left.String() + " " + string(c.Op) + " " + c.Right.String() + ")"
}

// OrderTerm is one sort key.
type OrderTerm struct {
	Path      []string
	Direction Direction
}

// NewOrderTerm builds an order term from a dotted path.
func NewOrderTerm(path string, dir Direction) OrderTerm {
	if dir == "" {
		dir = Asc
	}
	return OrderTerm{Path: SplitPath(path), Direction: dir}
}

// Attribute returns the dotted path.
func (o OrderTerm) Attribute() string {
	return strings.Join(o.Path, ".")
}

func (o OrderTerm) String() string {
	return o.Attribute() + " " + string(o.Direction)
}

// SplitPath splits a dotted path. Empty input gives an empty path.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func clonePath(path []string) []string {
	return append([]string(nil), path...)
}

// Not negates e. Predicates toggle their flag; conjunctions are rewritten
// with De Morgan's laws so that negation only ever sits on predicates.
func Not(e Expression) Expression {
	switch node := e.(type) {
	case *Predicate:
		return node.Not()
	case *Conjunction:
		op := And
		if node.Op == And {
			op = Or
		}
		return &Conjunction{Op: op, Left: Not(node.Left), Right: Not(node.Right)}
	default:
		return e
	}
}
