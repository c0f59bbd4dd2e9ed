// Package criteria builds storage-agnostic queries for one domain.
//
// A Criteria is created per request, mutated through a fluent chain and
// consumed once by a repository:
//
//	c, err := criteria.New("blog.post")
//	c.Filter(`published = true`).Order("created_at desc").Page(2).PerPage(10)
//	if err := c.Err(); err != nil { ... }
//
// Every mutator returns the receiver. The first failing mutator records its
// error; later mutators do nothing and Err reports the failure.
package criteria

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/grammar"
	"github.com/roach88/quarry/internal/transform"
)

// DefaultPerPage is the page size used when PerPage is never called.
const DefaultPerPage = 20

// Mode is the shape of the result a repository returns.
type Mode string

const (
	ModePage  Mode = "page"  // Lazily paginated collection
	ModeFirst Mode = "first" // One entity, first in order
	ModeLast  Mode = "last"  // One entity, last in order
	ModeAll   Mode = "all"   // Collection with pagination disabled
)

// Single reports whether the mode yields one entity.
func (m Mode) Single() bool {
	return m == ModeFirst || m == ModeLast
}

// Criteria is a query against one domain. It is not safe for concurrent
// mutation.
type Criteria struct {
	domain             Domain
	filter             expr.Expression
	order              []expr.OrderTerm
	limit              int
	page               int
	perPage            int
	perPageSet         bool
	paginationDisabled bool
	mode               Mode
	exec               string
	params             map[string]any
	errorOnEmpty       bool
	err                error
}

// New creates a criteria for domain. It fails when the name has no
// feature or global prefix.
func New(domain string) (*Criteria, error) {
	d, err := ParseDomain(domain)
	if err != nil {
		return nil, err
	}
	return &Criteria{
		domain:  d,
		page:    1,
		perPage: DefaultPerPage,
		mode:    ModePage,
		params:  map[string]any{},
	}, nil
}

// Err returns the first error recorded by a mutator.
func (c *Criteria) Err() error {
	return c.err
}

func (c *Criteria) fail(err error) *Criteria {
	if c.err == nil {
		c.err = err
	}
	return c
}

func invalidf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), errors.ErrInvalidCriteria)
}

// Filter ANDs input into the predicate tree. See FilterWith.
func (c *Criteria) Filter(input any) *Criteria {
	return c.FilterWith(expr.And, input)
}

// FilterWith folds input into the predicate tree using op. Accepted input:
//   - string: query text
//   - []string, []any: each element folded in turn
//   - map[string]string, map[string]any: query text to "and"/"or", keys in sorted order
//   - expr.Expression
//
// Every incoming expression is qualified against the criteria's domain
// first; already-qualified paths keep their namespace.
func (c *Criteria) FilterWith(op expr.Logic, input any) *Criteria {
	if c.err != nil {
		return c
	}
	if op != expr.And && op != expr.Or {
		return c.fail(invalidf("unknown logical operator %q", op))
	}

	switch in := input.(type) {
	case nil:
		return c
	case string:
		e, err := parseFilter(in)
		if err != nil {
			return c.fail(err)
		}
		return c.addFilter(op, e)
	case expr.Expression:
		return c.addFilter(op, in)
	case []string:
		for _, item := range in {
			c.FilterWith(op, item)
		}
		return c
	case []any:
		for _, item := range in {
			c.FilterWith(op, item)
		}
		return c
	case []expr.Expression:
		for _, item := range in {
			c.FilterWith(op, item)
		}
		return c
	case map[string]string:
		for _, text := range sortedKeys(in) {
			logic, err := expr.ParseLogic(in[text])
			if err != nil {
				return c.fail(errors.Mark(errors.Wrapf(err, "filter %q", text), errors.ErrInvalidCriteria))
			}
			c.FilterWith(logic, text)
		}
		return c
	case map[string]any:
		for _, text := range sortedKeys(in) {
			s, ok := in[text].(string)
			if !ok {
				return c.fail(invalidf("filter %q: logical operator must be a string, got %T", text, in[text]))
			}
			logic, err := expr.ParseLogic(s)
			if err != nil {
				return c.fail(errors.Mark(errors.Wrapf(err, "filter %q", text), errors.ErrInvalidCriteria))
			}
			c.FilterWith(logic, text)
		}
		return c
	default:
		return c.fail(invalidf("unsupported filter input %T", input))
	}
}

func parseFilter(text string) (expr.Expression, error) {
	node, err := grammar.Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "filter %q", text)
	}
	e, err := transform.Apply(node)
	if err != nil {
		return nil, errors.Wrapf(err, "filter %q", text)
	}
	return e, nil
}

func (c *Criteria) addFilter(op expr.Logic, e expr.Expression) *Criteria {
	if err := expr.Validate(e); err != nil {
		return c.fail(errors.Mark(err, errors.ErrInvalidCriteria))
	}
	c.filter = expr.Combine(op, c.filter, c.domain.QualifyExpression(e))
	return c
}

// Order appends sort keys. Accepted input:
//   - string: comma separated "path [asc|desc]" terms
//   - []string, []any: each element appended in turn
//   - map[string]string, map[string]any: path to direction, keys in sorted order
//   - []map[string]string
//   - expr.OrderTerm, []expr.OrderTerm
func (c *Criteria) Order(input any) *Criteria {
	if c.err != nil {
		return c
	}

	switch in := input.(type) {
	case nil:
		return c
	case string:
		terms, err := parseOrder(in)
		if err != nil {
			return c.fail(err)
		}
		for _, term := range terms {
			c.addOrder(term)
		}
		return c
	case expr.OrderTerm:
		return c.addOrder(in)
	case []expr.OrderTerm:
		for _, term := range in {
			c.addOrder(term)
		}
		return c
	case []string:
		for _, item := range in {
			c.Order(item)
		}
		return c
	case []any:
		for _, item := range in {
			c.Order(item)
		}
		return c
	case []map[string]string:
		for _, item := range in {
			c.Order(item)
		}
		return c
	case map[string]string:
		for _, path := range sortedKeys(in) {
			c.orderPair(path, in[path])
		}
		return c
	case map[string]any:
		for _, path := range sortedKeys(in) {
			dir, ok := in[path].(string)
			if !ok {
				return c.fail(invalidf("order %q: direction must be a string, got %T", path, in[path]))
			}
			c.orderPair(path, dir)
		}
		return c
	default:
		return c.fail(invalidf("unsupported order input %T", input))
	}
}

func (c *Criteria) orderPair(path, direction string) *Criteria {
	if c.err != nil {
		return c
	}
	dir, err := expr.ParseDirection(direction)
	if err != nil {
		return c.fail(errors.Mark(errors.Wrapf(err, "order %q", path), errors.ErrInvalidCriteria))
	}
	return c.addOrder(expr.NewOrderTerm(path, dir))
}

func parseOrder(text string) ([]expr.OrderTerm, error) {
	parsed, err := grammar.ParseOrder(text)
	if err != nil {
		return nil, errors.Wrapf(err, "order %q", text)
	}
	terms, err := transform.ApplyOrder(parsed)
	if err != nil {
		return nil, errors.Wrapf(err, "order %q", text)
	}
	return terms, nil
}

func (c *Criteria) addOrder(term expr.OrderTerm) *Criteria {
	if c.err != nil {
		return c
	}
	if err := expr.ValidatePath(term.Path); err != nil {
		return c.fail(errors.Mark(err, errors.ErrInvalidCriteria))
	}
	if term.Direction == "" {
		term.Direction = expr.Asc
	}
	c.order = append(c.order, c.domain.QualifyOrder(term))
	return c
}

// Limit caps the number of results. n must be positive.
func (c *Criteria) Limit(n int) *Criteria {
	if c.err != nil {
		return c
	}
	if n <= 0 {
		return c.fail(errors.NewInvalidRequestError("limit must be a positive integer, got %d", n))
	}
	c.limit = n
	return c
}

// Page selects the 1-based page of a paged collection.
func (c *Criteria) Page(n int) *Criteria {
	if c.err != nil {
		return c
	}
	if n <= 0 {
		return c.fail(errors.NewInvalidRequestError("page must be a positive integer, got %d", n))
	}
	c.page = n
	return c
}

// PerPage sets the page size of a paged collection.
func (c *Criteria) PerPage(n int) *Criteria {
	if c.err != nil {
		return c
	}
	if n <= 0 {
		return c.fail(errors.NewInvalidRequestError("per_page must be a positive integer, got %d", n))
	}
	c.perPage = n
	c.perPageSet = true
	return c
}

// DisablePagination makes a collection hold every matching row.
func (c *Criteria) DisablePagination() *Criteria {
	c.paginationDisabled = true
	return c
}

// First selects single-result mode returning the first entity.
func (c *Criteria) First() *Criteria {
	c.mode = ModeFirst
	return c
}

// Last selects single-result mode returning the last entity.
func (c *Criteria) Last() *Criteria {
	c.mode = ModeLast
	return c
}

// All selects an unpaginated collection.
func (c *Criteria) All() *Criteria {
	c.mode = ModeAll
	return c
}

// Exec routes the criteria to the named repository method instead of the
// generic query pipeline.
func (c *Criteria) Exec(name string) *Criteria {
	if c.err != nil {
		return c
	}
	if strings.TrimSpace(name) == "" {
		return c.fail(invalidf("exec name must not be empty"))
	}
	c.exec = name
	return c
}

// AddParam stores a side-channel value for custom queries.
func (c *Criteria) AddParam(key string, value any) *Criteria {
	c.params[key] = value
	return c
}

// ErrorOnEmptyDataset makes an empty result a NotFound error.
func (c *Criteria) ErrorOnEmptyDataset() *Criteria {
	c.errorOnEmpty = true
	return c
}

// Param returns a value stored with AddParam.
func (c *Criteria) Param(key string) (any, bool) {
	v, ok := c.params[key]
	return v, ok
}

// Params returns a copy of every stored param.
func (c *Criteria) Params() map[string]any {
	out := make(map[string]any, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

func (c *Criteria) Domain() Domain              { return c.domain }
func (c *Criteria) Expression() expr.Expression { return c.filter }
func (c *Criteria) PageNumber() int             { return c.page }
func (c *Criteria) PageSize() int               { return c.perPage }
func (c *Criteria) PerPageSet() bool            { return c.perPageSet }
func (c *Criteria) PaginationDisabled() bool    { return c.paginationDisabled || c.mode == ModeAll }
func (c *Criteria) Mode() Mode                  { return c.mode }
func (c *Criteria) ExecName() string            { return c.exec }
func (c *Criteria) ErrorOnEmpty() bool          { return c.errorOnEmpty }
func (c *Criteria) Ordering() []expr.OrderTerm  { return append([]expr.OrderTerm(nil), c.order...) }
func (c *Criteria) MaxResults() (int, bool)     { return c.limit, c.limit > 0 }

// String renders the criteria in search-string form.
func (c *Criteria) String() string {
	var b strings.Builder
	b.WriteString(c.domain.Name)
	if c.filter != nil {
		b.WriteString(" filter ")
		b.WriteString(c.filter.String())
	}
	if len(c.order) > 0 {
		terms := make([]string, len(c.order))
		for i, term := range c.order {
			terms[i] = term.String()
		}
		b.WriteString(" order ")
		b.WriteString(strings.Join(terms, ", "))
	}
	if c.limit > 0 {
		fmt.Fprintf(&b, " limit %d", c.limit)
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
