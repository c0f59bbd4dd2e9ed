package expr

import (
	"fmt"
	"strings"

	"github.com/roach88/quarry/internal/ir"
)

// ValidationError lists every problem found in an expression tree.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid expression: " + strings.Join(e.Issues, "; ")
}

// Validate checks that every predicate has a non-empty lowercase path, a
// known operator and a value shaped for that operator. Conjunctions must
// have both branches and a known connective. Validate is pure.
func Validate(e Expression) error {
	v := &validator{}
	v.validateExpression(e)
	if len(v.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: v.issues}
}

// validator accumulates issues during traversal.
type validator struct {
	issues []string
}

func (v *validator) addIssue(format string, args ...any) {
	v.issues = append(v.issues, fmt.Sprintf(format, args...))
}

func (v *validator) validateExpression(e Expression) {
	switch node := e.(type) {
	case nil:
		v.addIssue("nil expression")
	case *Predicate:
		if node == nil {
			v.addIssue("nil predicate")
			return
		}
		v.validatePredicate(node)
	case *Conjunction:
		if node == nil {
			v.addIssue("nil conjunction")
			return
		}
		if node.Op != And && node.Op != Or {
			v.addIssue("unknown logical operator %q", node.Op)
		}
		v.validateExpression(node.Left)
		v.validateExpression(node.Right)
	default:
		v.addIssue("unknown expression type %T", e)
	}
}

func (v *validator) validatePredicate(p *Predicate) {
	if err := ValidatePath(p.Path); err != nil {
		v.addIssue("%v", err)
	}
	attr := p.Attribute()

	if !operators[p.Op] {
		v.addIssue("%s: unknown operator %q", attr, p.Op)
		return
	}

	switch p.Op {
	case OpIn, OpNotIn:
		list, ok := p.Value.(ir.List)
		if !ok {
			v.addIssue("%s: %s needs a list, got %T", attr, p.Op, p.Value)
			return
		}
		if len(list) == 0 {
			v.addIssue("%s: %s needs at least one value", attr, p.Op)
		}
	case OpBetween, OpNotBetween:
		list, ok := p.Value.(ir.List)
		if !ok || len(list) != 2 {
			v.addIssue("%s: %s needs exactly two bounds", attr, p.Op)
		}
	case OpLike, OpNotLike:
		if _, ok := p.Value.(ir.String); !ok {
			v.addIssue("%s: %s needs a string pattern, got %T", attr, p.Op, p.Value)
		}
	default:
		if !ir.IsScalar(p.Value) {
			v.addIssue("%s: %s needs a scalar value, got %T", attr, p.Op, p.Value)
		}
	}
}

// ValidatePath checks that path is non-empty and every segment matches
// [a-z_][a-z0-9_]*.
func ValidatePath(path []string) error {
	if len(path) == 0 {
		return fmt.Errorf("empty attribute path")
	}
	for _, seg := range path {
		if !validSegment(seg) {
			return fmt.Errorf("invalid path segment %q in %q", seg, strings.Join(path, "."))
		}
	}
	return nil
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
