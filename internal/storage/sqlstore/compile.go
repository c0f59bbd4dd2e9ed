package sqlstore

import (
	"regexp"

	"github.com/Masterminds/squirrel"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/storage"
)

// identPattern matches a table or a (table-qualified) column. Identifiers
// are interpolated into SQL, so anything else is rejected; values always
// travel as parameters.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func checkIdent(kind, name string) error {
	if !identPattern.MatchString(name) {
		return errors.NewInvalidRequestError("invalid %s name %q", kind, name)
	}
	return nil
}

// Compile converts a storage condition into a squirrel predicate.
func Compile(cond storage.Condition) (squirrel.Sqlizer, error) {
	switch c := cond.(type) {
	case storage.Compare:
		s, err := compileCompare(c)
		if err != nil {
			return nil, err
		}
		if c.Negated {
			return not{s}, nil
		}
		return s, nil
	case storage.Junction:
		left, err := Compile(c.Left)
		if err != nil {
			return nil, err
		}
		right, err := Compile(c.Right)
		if err != nil {
			return nil, err
		}
		switch c.Op {
		case expr.And:
			return squirrel.And{left, right}, nil
		case expr.Or:
			return squirrel.Or{left, right}, nil
		default:
			return nil, errors.Newf("unknown logic operator %q", c.Op)
		}
	default:
		return nil, errors.Newf("unsupported condition %T", cond)
	}
}

func compileCompare(c storage.Compare) (squirrel.Sqlizer, error) {
	if err := checkIdent("column", c.Column); err != nil {
		return nil, err
	}
	col := c.Column

	switch c.Op {
	case expr.OpEq:
		return squirrel.Eq{col: arg(c.Value)}, nil
	case expr.OpNotEq:
		return squirrel.NotEq{col: arg(c.Value)}, nil
	case expr.OpGt:
		return squirrel.Gt{col: arg(c.Value)}, nil
	case expr.OpGte:
		return squirrel.GtOrEq{col: arg(c.Value)}, nil
	case expr.OpLt:
		return squirrel.Lt{col: arg(c.Value)}, nil
	case expr.OpLte:
		return squirrel.LtOrEq{col: arg(c.Value)}, nil
	case expr.OpIn, expr.OpNotIn:
		list, ok := c.Value.(ir.List)
		if !ok {
			return nil, errors.Newf("%s on %s needs a list", c.Op, col)
		}
		vals := arg(list)
		if c.Op == expr.OpIn {
			return squirrel.Eq{col: vals}, nil
		}
		return squirrel.NotEq{col: vals}, nil
	case expr.OpLike:
		return squirrel.Like{col: arg(c.Value)}, nil
	case expr.OpNotLike:
		return squirrel.NotLike{col: arg(c.Value)}, nil
	case expr.OpBetween, expr.OpNotBetween:
		list, ok := c.Value.(ir.List)
		if !ok || len(list) != 2 {
			return nil, errors.Newf("%s on %s needs two bounds", c.Op, col)
		}
		kw := " BETWEEN ? AND ?"
		if c.Op == expr.OpNotBetween {
			kw = " NOT BETWEEN ? AND ?"
		}
		return squirrel.Expr(col+kw, arg(list[0]), arg(list[1])), nil
	default:
		return nil, errors.Newf("unsupported operator %q", c.Op)
	}
}

// arg converts a value into a driver argument. Dates and datetimes are
// bound as text in the same layouts the query language uses, so they
// compare correctly against TEXT columns.
func arg(v ir.Value) any {
	switch val := v.(type) {
	case ir.Date:
		return val.Format(ir.DateLayout)
	case ir.DateTime:
		return val.UTC().Format(ir.DateTimeLayout)
	case ir.List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = arg(elem)
		}
		return out
	default:
		return ir.Native(v)
	}
}

// not wraps a predicate in NOT (...).
type not struct {
	inner squirrel.Sqlizer
}

func (n not) ToSql() (string, []interface{}, error) {
	sql, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}
