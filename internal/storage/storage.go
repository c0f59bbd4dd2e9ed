// Package storage defines the storage-level side of a query: conditions
// over storage columns, sort keys, and the Relation a backend exposes for
// filtering, ordering and paging.
//
// Columns are qualified by the storage resolution key, e.g. "posts.title".
// Rows returned by a backend are keyed by the bare storage attribute.
package storage

import (
	"context"
	"strings"

	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/ir"
)

// Row is one storage record, keyed by storage attribute.
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Condition is a storage-level filter. It is a sealed interface: only
// Compare and Junction implement it.
type Condition interface {
	condition()
}

// Compare tests one column against a value.
type Compare struct {
	Column  string
	Op      expr.Operator
	Value   ir.Value
	Negated bool
}

func (Compare) condition() {}

// Junction joins two conditions with and/or.
type Junction struct {
	Op    expr.Logic
	Left  Condition
	Right Condition
}

func (Junction) condition() {}

// Sort is one ORDER BY key.
type Sort struct {
	Column string
	Desc   bool
}

// Relation is a lazily evaluated, immutable view over one storage key.
// Where, Order and Limit return a new Relation; nothing touches storage
// until Count, Exists or Rows is called.
type Relation interface {
	Where(cond Condition) Relation
	Order(sorts ...Sort) Relation
	Limit(n int) Relation

	// Count returns the number of rows in the relation, bounded by Limit.
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context) (bool, error)
	// Rows returns up to n rows starting at offset. n <= 0 means no bound
	// beyond the relation's own Limit.
	Rows(ctx context.Context, offset, n int) ([]Row, error)
}

// Backend hands out relations by storage resolution key.
type Backend interface {
	Relation(ctx context.Context, key string) (Relation, error)
}

// Writer is implemented by backends that can persist rows.
type Writer interface {
	Insert(ctx context.Context, key string, row Row) error
}

// BareColumn strips the storage key qualifier from a column reference.
func BareColumn(key, column string) string {
	if rest, ok := strings.CutPrefix(column, key+"."); ok {
		return rest
	}
	return column
}

// Window clips the page [offset, offset+n) to a relation limit. limit <= 0
// means unlimited, n <= 0 means to the end. It returns the number of rows
// to take (-1 for unbounded) and false when the page is empty.
func Window(limit, offset, n int) (int, bool) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		if n <= 0 {
			return -1, true
		}
		return n, true
	}
	remaining := limit - offset
	if remaining <= 0 {
		return 0, false
	}
	if n <= 0 || n > remaining {
		return remaining, true
	}
	return n, true
}
