// Package mapper translates between the expression model and storage.
//
// Qualified attribute paths resolve through the mapping registry to
// "<storage-key>.<storage-attr>" references; entities flatten to storage
// rows and rows expand back into nested attribute hashes. A Mapper is
// bound to one application root and refuses storage maps owned by any
// other.
package mapper

import (
	"context"
	"strings"

	"github.com/roach88/quarry/internal/entity"
	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/mapping"
	"github.com/roach88/quarry/internal/storage"
)

// Mapper resolves expressions and values for one application root.
type Mapper struct {
	root string
	reg  *mapping.Registry
}

// New creates a mapper bound to root.
func New(root string, reg *mapping.Registry) *Mapper {
	return &Mapper{root: root, reg: reg}
}

// Root returns the application root the mapper is bound to.
func (m *Mapper) Root() string {
	return m.root
}

// Registry returns the mapping registry.
func (m *Mapper) Registry() *mapping.Registry {
	return m.reg
}

// StorageMap returns the storage map of (domain, kind), enforcing the
// root check.
func (m *Mapper) StorageMap(domain string, kind mapping.Kind) (*mapping.StorageMap, error) {
	sm, err := m.reg.StorageMap(domain, kind)
	if err != nil {
		return nil, err
	}
	if sm.Root != m.root {
		return nil, errors.Wrapf(errors.ErrCrossRoot, "%s/%s is owned by %q, mapper root is %q",
			domain, kind, sm.Root, m.root)
	}
	return sm, nil
}

// ResolveColumn returns the storage reference of a predicate's attribute.
func (m *Mapper) ResolveColumn(kind mapping.Kind, p *expr.Predicate) (string, error) {
	if p == nil {
		return "", errors.NewInvalidRequestError("nil predicate")
	}
	return m.resolvePath(kind, p.Path)
}

func (m *Mapper) resolvePath(kind mapping.Kind, path []string) (string, error) {
	domain, attr, ok := expr.SplitQualified(path)
	if !ok {
		return "", errors.Mark(
			errors.Newf("attribute path %q is not qualified", strings.Join(path, ".")),
			errors.ErrInvalidCriteria)
	}
	sm, err := m.StorageMap(domain, kind)
	if err != nil {
		return "", err
	}
	e, ok := sm.Entry(attr)
	if !ok {
		return "", errors.Wrapf(errors.ErrUnknownAttribute, "attribute %q of %s/%s", attr, domain, kind)
	}
	if e.Skip {
		return "", errors.Wrapf(errors.ErrUnknownAttribute, "attribute %q of %s is not stored in %s", attr, domain, kind)
	}
	return sm.Key + "." + e.StorageAttr, nil
}

// Resolve converts an expression into a storage condition, keeping its
// and/or structure and negations. A nil expression resolves to nil.
func (m *Mapper) Resolve(kind mapping.Kind, e expr.Expression) (storage.Condition, error) {
	switch node := e.(type) {
	case nil:
		return nil, nil
	case *expr.Predicate:
		col, err := m.ResolveColumn(kind, node)
		if err != nil {
			return nil, err
		}
		return storage.Compare{
			Column:  col,
			Op:      node.Op,
			Value:   node.Value,
			Negated: node.Negated,
		}, nil
	case *expr.Conjunction:
		left, err := m.Resolve(kind, node.Left)
		if err != nil {
			return nil, err
		}
		right, err := m.Resolve(kind, node.Right)
		if err != nil {
			return nil, err
		}
		switch {
		case left == nil:
			return right, nil
		case right == nil:
			return left, nil
		}
		return storage.Junction{Op: node.Op, Left: left, Right: right}, nil
	default:
		return nil, errors.Newf("unsupported expression %T", e)
	}
}

// ResolveOrder converts order terms into storage sort keys.
func (m *Mapper) ResolveOrder(kind mapping.Kind, terms []expr.OrderTerm) ([]storage.Sort, error) {
	sorts := make([]storage.Sort, 0, len(terms))
	for _, t := range terms {
		col, err := m.resolvePath(kind, t.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "order %s", t)
		}
		sorts = append(sorts, storage.Sort{Column: col, Desc: t.Direction == expr.Desc})
	}
	return sorts, nil
}

// ToStorage flattens ent into a storage row for kind. Skipped entries and
// domain attributes named in exclude are left out. A dotted attribute whose
// intermediate segment is absent stores nil.
func (m *Mapper) ToStorage(ent entity.Entity, kind mapping.Kind, exclude ...string) (storage.Row, error) {
	if ent == nil {
		return nil, errors.NewInvalidRequestError("nil entity")
	}
	sm, err := m.StorageMap(ent.Domain(), kind)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(exclude))
	for _, attr := range exclude {
		skip[attr] = true
	}

	row := make(storage.Row)
	for _, e := range sm.Entries() {
		if e.Skip || skip[e.DomainAttr] {
			continue
		}
		val, _ := entity.Dig(ent, e.DomainAttr)
		if e.Computed() {
			val, err = e.Compute(val, ent)
			if err != nil {
				return nil, errors.Wrapf(err, "compute %s.%s", ent.Domain(), e.DomainAttr)
			}
		}
		row[e.StorageAttr] = val
	}
	return row, nil
}

// ToEntityHash expands a storage row into the nested attribute hash of
// domain. Entries sharing a prefix merge: "a.b" and "a.c" both land
// under "a". Storage attributes absent from row are left out.
func (m *Mapper) ToEntityHash(domain string, kind mapping.Kind, row storage.Row) (map[string]any, error) {
	sm, err := m.StorageMap(domain, kind)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any)
	for _, e := range sm.Entries() {
		if e.Skip {
			continue
		}
		val, ok := row[e.StorageAttr]
		if !ok {
			continue
		}
		if err := setPath(out, strings.Split(e.DomainAttr, "."), val); err != nil {
			return nil, errors.Wrapf(err, "%s attribute %q", domain, e.DomainAttr)
		}
	}
	return out, nil
}

func setPath(dst map[string]any, path []string, val any) error {
	cur := dst
	for _, seg := range path[:len(path)-1] {
		next, exists := cur[seg]
		if !exists {
			child := make(map[string]any)
			cur[seg] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return errors.Newf("segment %q already holds a value", seg)
		}
		cur = child
	}
	last := path[len(path)-1]
	if _, isMap := cur[last].(map[string]any); isMap {
		return errors.Newf("segment %q already holds nested attributes", last)
	}
	cur[last] = val
	return nil
}

// Exists reports whether any row of the predicate's domain matches it.
func (m *Mapper) Exists(ctx context.Context, backend storage.Backend, kind mapping.Kind, p *expr.Predicate) (bool, error) {
	if p == nil {
		return false, errors.NewInvalidRequestError("nil predicate")
	}
	domain, _, ok := expr.SplitQualified(p.Path)
	if !ok {
		return false, errors.Mark(
			errors.Newf("attribute path %q is not qualified", strings.Join(p.Path, ".")),
			errors.ErrInvalidCriteria)
	}
	sm, err := m.StorageMap(domain, kind)
	if err != nil {
		return false, err
	}
	cond, err := m.Resolve(kind, p)
	if err != nil {
		return false, err
	}
	rel, err := backend.Relation(ctx, sm.Key)
	if err != nil {
		return false, errors.Wrapf(err, "open %s", sm.Key)
	}
	return rel.Where(cond).Exists(ctx)
}
