// Package entity defines the contract between quarry and domain types.
//
// quarry never inspects a domain type beyond two capabilities: building
// one from an attribute map (Constructor) and reading its attributes by
// name (Entity.Attribute). Nested values are reached with Dig, which walks
// a dotted path through entities and plain maps.
package entity

import (
	"fmt"
	"sort"
	"strings"
)

// Entity is a domain object readable by attribute name.
type Entity interface {
	// Domain returns the "<feature>.<basename>" or "global.<basename>" name.
	Domain() string

	// Attribute returns a top-level attribute. The bool is false when the
	// entity has no such attribute.
	Attribute(name string) (any, bool)
}

// Constructor builds an entity from a nested attribute map.
type Constructor func(attrs map[string]any) (Entity, error)

// Presence is implemented by entities that can report whether they hold
// any value at all. Entities that do not implement it are present.
type Presence interface {
	Present() bool
}

// IsPresent reports whether e is a real entity rather than a placeholder.
func IsPresent(e Entity) bool {
	if e == nil {
		return false
	}
	if p, ok := e.(Presence); ok {
		return p.Present()
	}
	return true
}

// Record is a map-backed entity used when a domain registers no type of
// its own.
type Record struct {
	domain string
	attrs  map[string]any
}

// NewRecord wraps attrs. The map is not copied.
func NewRecord(domain string, attrs map[string]any) *Record {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &Record{domain: domain, attrs: attrs}
}

// RecordConstructor returns a Constructor producing Records for domain.
func RecordConstructor(domain string) Constructor {
	return func(attrs map[string]any) (Entity, error) {
		return NewRecord(domain, attrs), nil
	}
}

func (r *Record) Domain() string { return r.domain }

func (r *Record) Attribute(name string) (any, bool) {
	v, ok := r.attrs[name]
	return v, ok
}

// Present implements Presence.
func (r *Record) Present() bool { return true }

// Attributes returns the underlying attribute map.
func (r *Record) Attributes() map[string]any {
	return r.attrs
}

func (r *Record) String() string {
	keys := make([]string, 0, len(r.attrs))
	for k := range r.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, r.attrs[k])
	}
	return r.domain + "{" + strings.Join(parts, " ") + "}"
}

// NotFound is the placeholder returned instead of an entity when a
// single-result query matches nothing. Every attribute reports no value.
type NotFound struct {
	domain string
}

// NewNotFound returns a placeholder for domain.
func NewNotFound(domain string) *NotFound {
	return &NotFound{domain: domain}
}

func (n *NotFound) Domain() string { return n.domain }

func (n *NotFound) Attribute(string) (any, bool) { return nil, false }

// Present implements Presence.
func (n *NotFound) Present() bool { return false }

func (n *NotFound) String() string {
	return n.domain + "{not found}"
}

// Dig resolves a dotted path starting at v, which may be an Entity or a
// map[string]any. It returns false as soon as a segment is unreadable;
// absent nested data is not an error.
func Dig(v any, path string) (any, bool) {
	if path == "" {
		return v, v != nil
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case Entity:
			val, ok := node.Attribute(seg)
			if !ok {
				return nil, false
			}
			cur = val
		case map[string]any:
			val, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = val
		default:
			return nil, false
		}
	}
	return cur, true
}
