// Package memory is the in-process storage kind. Tables are slices of rows
// held under a read-write lock; relations evaluate conditions with Match.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/storage"
)

// Store holds rows per storage key.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]storage.Row
}

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[string][]storage.Row)}
}

// Load replaces the rows under key.
func (s *Store) Load(key string, rows []storage.Row) {
	copied := make([]storage.Row, len(rows))
	for i, r := range rows {
		copied[i] = r.Clone()
	}
	s.mu.Lock()
	s.tables[key] = copied
	s.mu.Unlock()
}

// Insert implements storage.Writer.
func (s *Store) Insert(ctx context.Context, key string, row storage.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.tables[key] = append(s.tables[key], row.Clone())
	s.mu.Unlock()
	return nil
}

// Keys returns the storage keys holding rows, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.tables))
	for k := range s.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Relation implements storage.Backend. An unknown key is an empty table.
// The relation reads a snapshot taken now.
func (s *Store) Relation(ctx context.Context, key string) (storage.Relation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rows := append([]storage.Row(nil), s.tables[key]...)
	s.mu.RUnlock()
	return NewRelation(key, rows), nil
}

// Relation is an immutable query over a fixed set of rows.
type Relation struct {
	key   string
	rows  []storage.Row
	where storage.Condition
	order []storage.Sort
	limit int
}

// NewRelation wraps rows read from key.
func NewRelation(key string, rows []storage.Row) *Relation {
	return &Relation{key: key, rows: rows}
}

func (r *Relation) clone() *Relation {
	c := *r
	c.order = append([]storage.Sort(nil), r.order...)
	return &c
}

// Where implements storage.Relation. Successive calls are and-ed.
func (r *Relation) Where(cond storage.Condition) storage.Relation {
	c := r.clone()
	if c.where == nil {
		c.where = cond
	} else if cond != nil {
		c.where = storage.Junction{Op: expr.And, Left: c.where, Right: cond}
	}
	return c
}

// Order implements storage.Relation.
func (r *Relation) Order(sorts ...storage.Sort) storage.Relation {
	c := r.clone()
	c.order = append(c.order, sorts...)
	return c
}

// Limit implements storage.Relation.
func (r *Relation) Limit(n int) storage.Relation {
	c := r.clone()
	c.limit = n
	return c
}

// Count implements storage.Relation.
func (r *Relation) Count(ctx context.Context) (int, error) {
	rows, err := r.evaluate(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Exists implements storage.Relation.
func (r *Relation) Exists(ctx context.Context) (bool, error) {
	n, err := r.Count(ctx)
	return n > 0, err
}

// Rows implements storage.Relation.
func (r *Relation) Rows(ctx context.Context, offset, n int) ([]storage.Row, error) {
	rows, err := r.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []storage.Row{}, nil
	}
	rows = rows[offset:]
	if n > 0 && n < len(rows) {
		rows = rows[:n]
	}
	out := make([]storage.Row, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out, nil
}

// evaluate filters, sorts and limits the snapshot.
func (r *Relation) evaluate(ctx context.Context) ([]storage.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched := make([]storage.Row, 0, len(r.rows))
	for _, row := range r.rows {
		ok, err := Match(r.key, r.where, row)
		if err != nil {
			return nil, errors.Wrapf(err, "filter %s", r.key)
		}
		if ok {
			matched = append(matched, row)
		}
	}

	if len(r.order) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return r.less(matched[i], matched[j])
		})
	}

	if r.limit > 0 && len(matched) > r.limit {
		matched = matched[:r.limit]
	}
	return matched, nil
}

// less orders NULLs first, like SQLite. Values that cannot be compared
// fall back to their printed form.
func (r *Relation) less(a, b storage.Row) bool {
	for _, s := range r.order {
		col := storage.BareColumn(r.key, s.Column)
		n, err := ir.Compare(a[col], b[col])
		if err != nil {
			n = compareText(fmt.Sprint(a[col]), fmt.Sprint(b[col]))
		}
		if n == 0 {
			continue
		}
		if s.Desc {
			return n > 0
		}
		return n < 0
	}
	return false
}

func compareText(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
