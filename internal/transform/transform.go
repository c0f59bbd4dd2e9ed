// Package transform turns grammar parse trees into typed expressions.
//
// Every function here is pure. A tree whose shape does not match what the
// grammar produces fails with a ShapeError instead of yielding an empty
// result.
package transform

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/grammar"
	"github.com/roach88/quarry/internal/ir"
)

// ShapeError reports a parse tree node the transform cannot handle.
type ShapeError struct {
	Node   string // Go type of the node
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected parse tree node %s: %s", e.Node, e.Reason)
}

func shapeErrorf(n any, format string, args ...any) *ShapeError {
	return &ShapeError{Node: fmt.Sprintf("%T", n), Reason: fmt.Sprintf(format, args...)}
}

// LiteralError reports a literal that lexed but cannot be converted, such
// as an out of range integer or a 13th month.
type LiteralError struct {
	Kind   grammar.LiteralKind
	Raw    string
	Offset int
	Err    error
}

func (e *LiteralError) Error() string {
	return fmt.Sprintf("invalid %s literal %q at offset %d: %v", e.Kind, e.Raw, e.Offset, e.Err)
}

func (e *LiteralError) Unwrap() error {
	return e.Err
}

// Search is a transformed search string. Domain is the raw
// "<feature>.<basename>" name; Limit is nil when absent.
type Search struct {
	Domain string
	Filter expr.Expression
	Order  []expr.OrderTerm
	Limit  *int
}

// Apply converts a filter parse tree into an Expression.
func Apply(n grammar.Node) (expr.Expression, error) {
	switch node := n.(type) {
	case *grammar.DomainExpr:
		return applyDomainExpr(node)
	case *grammar.BoolExpr:
		return applyBoolExpr(node)
	case *grammar.Group:
		if node.Inner == nil {
			return nil, shapeErrorf(node, "empty group")
		}
		return Apply(node.Inner)
	case nil:
		return nil, &ShapeError{Node: "nil", Reason: "expected an expression"}
	default:
		return nil, shapeErrorf(n, "expected a comparison, and/or, or group")
	}
}

// ApplySearch converts a search parse tree.
func ApplySearch(s *grammar.Search) (*Search, error) {
	if s == nil {
		return nil, &ShapeError{Node: "nil", Reason: "expected a search"}
	}
	if len(s.Domain) != 2 {
		return nil, shapeErrorf(s, "domain must have two segments, got %d", len(s.Domain))
	}

	out := &Search{Domain: strings.Join(s.Domain, ".")}
	if s.Filter != nil {
		filter, err := Apply(s.Filter)
		if err != nil {
			return nil, err
		}
		out.Filter = filter
	}

	order, err := ApplyOrder(s.Order)
	if err != nil {
		return nil, err
	}
	out.Order = order

	if s.Limit != nil {
		if s.Limit.Kind != grammar.LitInt {
			return nil, shapeErrorf(s.Limit, "limit must be an integer literal, got %s", s.Limit.Kind)
		}
		n, err := strconv.Atoi(s.Limit.Raw)
		if err != nil {
			return nil, &LiteralError{Kind: s.Limit.Kind, Raw: s.Limit.Raw, Offset: s.Limit.Offset, Err: err}
		}
		out.Limit = &n
	}
	return out, nil
}

// ApplyOrder converts parsed order terms. A missing direction means asc.
func ApplyOrder(terms []*grammar.OrderTerm) ([]expr.OrderTerm, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	out := make([]expr.OrderTerm, 0, len(terms))
	for _, term := range terms {
		if term == nil || len(term.Path) == 0 {
			return nil, shapeErrorf(term, "order term without a path")
		}
		dir, err := expr.ParseDirection(term.Direction)
		if err != nil {
			return nil, shapeErrorf(term, "%v", err)
		}
		out = append(out, expr.OrderTerm{Path: append([]string(nil), term.Path...), Direction: dir})
	}
	return out, nil
}

func applyDomainExpr(n *grammar.DomainExpr) (expr.Expression, error) {
	if len(n.Path) == 0 {
		return nil, shapeErrorf(n, "comparison without a path")
	}
	op, err := expr.ParseOperator(n.Op)
	if err != nil {
		return nil, shapeErrorf(n, "%v", err)
	}

	var value ir.Value
	switch v := n.Value.(type) {
	case *grammar.Literal:
		if op == expr.OpIn || op == expr.OpNotIn || op == expr.OpBetween || op == expr.OpNotBetween {
			return nil, shapeErrorf(n, "%s needs a list or range, got a literal", op)
		}
		value, err = Value(v)
	case *grammar.List:
		if op != expr.OpIn && op != expr.OpNotIn {
			return nil, shapeErrorf(n, "%s cannot take a list", op)
		}
		value, err = listValue(v)
	case *grammar.Range:
		if op != expr.OpBetween && op != expr.OpNotBetween {
			return nil, shapeErrorf(n, "%s cannot take a range", op)
		}
		value, err = rangeValue(v)
	default:
		return nil, shapeErrorf(n, "unsupported value node %T", n.Value)
	}
	if err != nil {
		return nil, err
	}

	return &expr.Predicate{Path: append([]string(nil), n.Path...), Op: op, Value: value}, nil
}

func applyBoolExpr(n *grammar.BoolExpr) (expr.Expression, error) {
	logic, err := expr.ParseLogic(n.Op)
	if err != nil {
		return nil, shapeErrorf(n, "%v", err)
	}
	left, err := Apply(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := Apply(n.Right)
	if err != nil {
		return nil, err
	}
	return &expr.Conjunction{Op: logic, Left: left, Right: right}, nil
}

func listValue(l *grammar.List) (ir.List, error) {
	if len(l.Items) == 0 {
		return nil, shapeErrorf(l, "empty list")
	}
	out := make(ir.List, len(l.Items))
	for i, item := range l.Items {
		v, err := Value(item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func rangeValue(r *grammar.Range) (ir.List, error) {
	if r.Low == nil || r.High == nil {
		return nil, shapeErrorf(r, "range needs two bounds")
	}
	low, err := Value(r.Low)
	if err != nil {
		return nil, err
	}
	high, err := Value(r.High)
	if err != nil {
		return nil, err
	}
	return ir.List{low, high}, nil
}

// Value converts a literal into a typed value. Strings are unescaped and
// NFC-normalized.
func Value(lit *grammar.Literal) (ir.Value, error) {
	if lit == nil {
		return nil, &ShapeError{Node: "nil", Reason: "expected a literal"}
	}
	litErr := func(err error) error {
		return &LiteralError{Kind: lit.Kind, Raw: lit.Raw, Offset: lit.Offset, Err: err}
	}

	switch lit.Kind {
	case grammar.LitInt:
		n, err := strconv.ParseInt(lit.Raw, 10, 64)
		if err != nil {
			return nil, litErr(err)
		}
		return ir.Int(n), nil
	case grammar.LitFloat:
		f, err := strconv.ParseFloat(lit.Raw, 64)
		if err != nil {
			return nil, litErr(err)
		}
		return ir.Float(f), nil
	case grammar.LitBool:
		switch {
		case strings.EqualFold(lit.Raw, "true"):
			return ir.Bool(true), nil
		case strings.EqualFold(lit.Raw, "false"):
			return ir.Bool(false), nil
		}
		return nil, litErr(fmt.Errorf("not a boolean"))
	case grammar.LitString:
		s, err := Unescape(lit.Raw)
		if err != nil {
			return nil, litErr(err)
		}
		return ir.String(norm.NFC.String(s)), nil
	case grammar.LitDate:
		d, err := ir.ParseDate(lit.Raw)
		if err != nil {
			return nil, litErr(err)
		}
		return d, nil
	case grammar.LitDateTime:
		dt, err := ir.ParseDateTime(lit.Raw)
		if err != nil {
			return nil, litErr(err)
		}
		return dt, nil
	default:
		return nil, shapeErrorf(lit, "unknown literal kind %q", lit.Kind)
	}
}

// Unescape decodes \0 \t \n \r \" and \\ in the body of a string literal.
func Unescape(raw string) (string, error) {
	if !strings.ContainsRune(raw, '\\') {
		return raw, nil
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(raw) {
			return "", fmt.Errorf("dangling escape at end of string")
		}
		i++
		switch raw[i] {
		case '0':
			b.WriteByte(0)
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", fmt.Errorf("invalid escape \\%c", raw[i])
		}
	}
	return b.String(), nil
}
