package memory

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/storage"
)

// Match evaluates cond against row. Column references are stripped of the
// key qualifier. Comparisons against a missing or NULL column are unknown
// and never match, negated or not, as in SQL.
func Match(key string, cond storage.Condition, row storage.Row) (bool, error) {
	got, known, err := eval(key, cond, row)
	if err != nil {
		return false, err
	}
	return known && got, nil
}

// eval returns the three-valued result of cond: (value, known).
func eval(key string, cond storage.Condition, row storage.Row) (bool, bool, error) {
	switch c := cond.(type) {
	case nil:
		return true, true, nil
	case storage.Compare:
		got, known, err := compare(key, c, row)
		if err != nil || !known {
			return false, known, err
		}
		return got != c.Negated, true, nil
	case storage.Junction:
		l, lk, err := eval(key, c.Left, row)
		if err != nil {
			return false, false, err
		}
		r, rk, err := eval(key, c.Right, row)
		if err != nil {
			return false, false, err
		}
		switch c.Op {
		case expr.And:
			if (lk && !l) || (rk && !r) {
				return false, true, nil
			}
			return true, lk && rk, nil
		case expr.Or:
			if (lk && l) || (rk && r) {
				return true, true, nil
			}
			return false, lk && rk, nil
		default:
			return false, false, errors.Newf("unknown logic operator %q", c.Op)
		}
	default:
		return false, false, errors.Newf("unsupported condition %T", cond)
	}
}

func compare(key string, c storage.Compare, row storage.Row) (bool, bool, error) {
	col := storage.BareColumn(key, c.Column)
	have, ok := row[col]
	if !ok {
		have = nil
	}

	switch c.Op {
	case expr.OpEq, expr.OpNotEq:
		if _, isNull := c.Value.(ir.Null); isNull || c.Value == nil {
			eq := have == nil
			return eq == (c.Op == expr.OpEq), true, nil
		}
	}
	if have == nil {
		return false, false, nil
	}

	switch c.Op {
	case expr.OpEq, expr.OpNotEq:
		n, err := ir.Compare(have, ir.Native(c.Value))
		if err != nil {
			return false, false, wrapCompare(err, col)
		}
		return (n == 0) == (c.Op == expr.OpEq), true, nil

	case expr.OpGt, expr.OpGte, expr.OpLt, expr.OpLte:
		n, err := ir.Compare(have, ir.Native(c.Value))
		if err != nil {
			return false, false, wrapCompare(err, col)
		}
		switch c.Op {
		case expr.OpGt:
			return n > 0, true, nil
		case expr.OpGte:
			return n >= 0, true, nil
		case expr.OpLt:
			return n < 0, true, nil
		default:
			return n <= 0, true, nil
		}

	case expr.OpIn, expr.OpNotIn:
		list, ok := c.Value.(ir.List)
		if !ok {
			return false, false, errors.Newf("%s on %s needs a list", c.Op, col)
		}
		found := false
		for _, elem := range list {
			n, err := ir.Compare(have, ir.Native(elem))
			if err == nil && n == 0 {
				found = true
				break
			}
		}
		return found == (c.Op == expr.OpIn), true, nil

	case expr.OpBetween, expr.OpNotBetween:
		list, ok := c.Value.(ir.List)
		if !ok || len(list) != 2 {
			return false, false, errors.Newf("%s on %s needs two bounds", c.Op, col)
		}
		lo, err := ir.Compare(have, ir.Native(list[0]))
		if err != nil {
			return false, false, wrapCompare(err, col)
		}
		hi, err := ir.Compare(have, ir.Native(list[1]))
		if err != nil {
			return false, false, wrapCompare(err, col)
		}
		inside := lo >= 0 && hi <= 0
		return inside == (c.Op == expr.OpBetween), true, nil

	case expr.OpLike, expr.OpNotLike:
		pattern, ok := c.Value.(ir.String)
		if !ok {
			return false, false, errors.Newf("%s on %s needs a string pattern", c.Op, col)
		}
		re, err := likePattern(string(pattern))
		if err != nil {
			return false, false, err
		}
		matched := re.MatchString(fmt.Sprint(have))
		return matched == (c.Op == expr.OpLike), true, nil

	default:
		return false, false, errors.Newf("unsupported operator %q", c.Op)
	}
}

func wrapCompare(err error, col string) error {
	return errors.Wrapf(err, "compare column %s", col)
}

// likePattern translates a SQL LIKE pattern into an anchored regexp. As in
// SQLite, matching is case-insensitive.
func likePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.Wrapf(err, "like pattern %q", pattern)
	}
	return re, nil
}
