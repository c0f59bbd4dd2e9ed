package grammar

import (
	"fmt"
	"strings"
)

// Node is a sealed interface for parse tree nodes. Only types in this
// package implement it.
type Node interface {
	grammarNode() // Marker method - seals interface to this package
}

// LiteralKind identifies the lexical class of a literal.
type LiteralKind string

const (
	LitInt      LiteralKind = "int"
	LitFloat    LiteralKind = "float"
	LitBool     LiteralKind = "bool"
	LitString   LiteralKind = "string"
	LitDate     LiteralKind = "date"
	LitDateTime LiteralKind = "datetime"
)

// Literal is an unconverted literal. For strings Raw is the text between
// the quotes with escapes still in place.
type Literal struct {
	Kind   LiteralKind
	Raw    string
	Offset int
}

func (*Literal) grammarNode() {}

// List is the parenthesized value list of in / not in.
type List struct {
	Items []*Literal
}

func (*List) grammarNode() {}

// Range is the pair of bounds of between / not between.
type Range struct {
	Low  *Literal
	High *Literal
}

func (*Range) grammarNode() {}

// DomainExpr is a single comparison. Op is lowercase with single spaces,
// e.g. "not in". Value is a *Literal, *List or *Range.
type DomainExpr struct {
	Path   []string
	Op     string
	Value  Node
	Offset int
}

func (*DomainExpr) grammarNode() {}

// BoolExpr joins two nodes with "and" or "or".
type BoolExpr struct {
	Op    string
	Left  Node
	Right Node
}

func (*BoolExpr) grammarNode() {}

// Group is a parenthesized sub-expression.
type Group struct {
	Inner Node
}

func (*Group) grammarNode() {}

// OrderTerm is one sort key. Direction is "asc", "desc" or empty.
type OrderTerm struct {
	Path      []string
	Direction string
}

func (*OrderTerm) grammarNode() {}

// Search is a full search string. Filter and Limit may be nil.
type Search struct {
	Domain []string
	Filter Node
	Order  []*OrderTerm
	Limit  *Literal
}

func (*Search) grammarNode() {}

// Dump renders a node as an s-expression. It is used for diagnostics and
// tests, not for round-tripping.
func Dump(n Node) string {
	var b strings.Builder
	dump(&b, n)
	return b.String()
}

func dump(b *strings.Builder, n Node) {
	switch node := n.(type) {
	case nil:
		b.WriteString("nil")
	case *Literal:
		if node.Kind == LitString {
			fmt.Fprintf(b, "%s:\"%s\"", node.Kind, node.Raw)
		} else {
			fmt.Fprintf(b, "%s:%s", node.Kind, node.Raw)
		}
	case *List:
		b.WriteString("(list")
		for _, item := range node.Items {
			b.WriteByte(' ')
			dump(b, item)
		}
		b.WriteByte(')')
	case *Range:
		b.WriteString("(range ")
		dump(b, node.Low)
		b.WriteByte(' ')
		dump(b, node.High)
		b.WriteByte(')')
	case *DomainExpr:
		fmt.Fprintf(b, "(%s %s ", node.Op, strings.Join(node.Path, "."))
		dump(b, node.Value)
		b.WriteByte(')')
	case *BoolExpr:
		fmt.Fprintf(b, "(%s ", node.Op)
		dump(b, node.Left)
		b.WriteByte(' ')
		dump(b, node.Right)
		b.WriteByte(')')
	case *Group:
		b.WriteString("(group ")
		dump(b, node.Inner)
		b.WriteByte(')')
	case *OrderTerm:
		dir := node.Direction
		if dir == "" {
			dir = "asc"
		}
		fmt.Fprintf(b, "(order %s %s)", strings.Join(node.Path, "."), dir)
	case *Search:
		fmt.Fprintf(b, "(search %s", strings.Join(node.Domain, "."))
		if node.Filter != nil {
			b.WriteString(" (filter ")
			dump(b, node.Filter)
			b.WriteByte(')')
		}
		for _, term := range node.Order {
			b.WriteByte(' ')
			dump(b, term)
		}
		if node.Limit != nil {
			fmt.Fprintf(b, " (limit %s)", node.Limit.Raw)
		}
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "<%T>", n)
	}
}
