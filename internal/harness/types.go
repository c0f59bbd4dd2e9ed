package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/quarry/internal/errors"
)

// Result shapes.
const (
	ShapeCollection = "collection"
	ShapeEntity     = "entity"
	ShapeNotFound   = "not found"
	ShapeError      = "error"
)

// Error classes reported for failed queries.
const (
	ClassNotFound         = "not_found"
	ClassInvalidCriteria  = "invalid_criteria"
	ClassInvalidRequest   = "invalid_request"
	ClassInvalidDomain    = "invalid_domain"
	ClassUnknownEntity    = "unknown_entity"
	ClassUnknownAttribute = "unknown_attribute"
	ClassCrossRoot        = "cross_root"
	ClassOther            = "other"
)

// QueryResult records what one query returned.
type QueryResult struct {
	Name   string `json:"name"`
	Search string `json:"search"`
	Shape  string `json:"shape"`

	// IDs are the returned entity ids rendered as text.
	IDs []string `json:"ids,omitempty"`

	Page    int `json:"page,omitempty"`
	PerPage int `json:"per_page,omitempty"`
	Total   int `json:"total,omitempty"`
	Pages   int `json:"pages,omitempty"`

	// ErrorClass is set when Shape is ShapeError.
	ErrorClass string `json:"error_class,omitempty"`
	Err        error  `json:"-"`
}

// Count returns the number of entities the query produced.
func (q *QueryResult) Count() int {
	switch q.Shape {
	case ShapeEntity:
		return 1
	case ShapeCollection:
		return len(q.IDs)
	default:
		return 0
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	Queries []QueryResult `json:"queries"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Queries: []QueryResult{},
		Errors:  []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Report renders the result as stable text for golden comparison.
func (r *Result) Report(s *Scenario) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", s.Name)
	fmt.Fprintf(&b, "kind: %s\n", kindOf(s))
	for _, q := range r.Queries {
		fmt.Fprintf(&b, "\nquery %s\n", q.Name)
		fmt.Fprintf(&b, "  search: %s\n", q.Search)
		fmt.Fprintf(&b, "  result: %s\n", q.Shape)
		switch q.Shape {
		case ShapeCollection:
			if q.PerPage > 0 {
				fmt.Fprintf(&b, "  page: %d/%d per_page %d\n", q.Page, q.Pages, q.PerPage)
			} else {
				fmt.Fprintf(&b, "  page: all\n")
			}
			fmt.Fprintf(&b, "  total: %d\n", q.Total)
			fmt.Fprintf(&b, "  ids: %s\n", joinIDs(q.IDs))
		case ShapeEntity:
			fmt.Fprintf(&b, "  ids: %s\n", joinIDs(q.IDs))
		case ShapeError:
			fmt.Fprintf(&b, "  error: %s\n", q.ErrorClass)
		}
	}
	if !r.Pass {
		b.WriteString("\nfailures:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}

func joinIDs(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}

// classify maps an error onto the class names used by Expect.Error.
func classify(err error) string {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return ClassNotFound
	case errors.Is(err, errors.ErrCrossRoot):
		return ClassCrossRoot
	case errors.Is(err, errors.ErrUnknownAttribute):
		return ClassUnknownAttribute
	case errors.Is(err, errors.ErrUnknownEntity):
		return ClassUnknownEntity
	case errors.Is(err, errors.ErrInvalidDomain):
		return ClassInvalidDomain
	case errors.Is(err, errors.ErrInvalidCriteria):
		return ClassInvalidCriteria
	case errors.Is(err, errors.ErrInvalidRequest):
		return ClassInvalidRequest
	default:
		return ClassOther
	}
}
