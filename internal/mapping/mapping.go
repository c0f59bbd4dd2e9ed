// Package mapping holds the boot-time table of domain attribute to storage
// attribute correspondences.
//
// One Spec is registered per (domain, storage kind). The registry is
// populated during start-up, then sealed; after that it is read-only and
// safe for concurrent readers.
package mapping

import (
	"strings"

	"github.com/roach88/quarry/internal/entity"
)

// Kind is a storage kind.
type Kind string

const (
	KindRelational Kind = "relational"
	KindFile       Kind = "file"
	KindMemory     Kind = "memory"
)

// ComputeFunc derives the stored value from the raw domain value. ent is
// the full entity being persisted.
type ComputeFunc func(value any, ent entity.Entity) (any, error)

// Entry is one domain attribute to storage attribute correspondence.
type Entry struct {
	DomainAttr  string // Dotted path relative to the domain, e.g. "author.name"
	StorageAttr string // Column or field name in storage
	Domain      string
	Kind        Kind
	Skip        bool // Present in the domain, never persisted or read for this kind
	Compute     ComputeFunc
	Root        string // Owning application root
}

// Computed reports whether the entry carries a compute function.
func (e Entry) Computed() bool {
	return e.Compute != nil
}

// AttributeSpec declares one attribute of a Spec. Column defaults to the
// attribute name with dots replaced by underscores.
type AttributeSpec struct {
	Name    string
	Column  string
	Skip    bool
	Compute ComputeFunc
}

// Spec declares the storage map for one (domain, kind).
type Spec struct {
	Domain     string
	Kind       Kind
	Key        string // Storage resolution key (table, file or collection)
	Root       string
	Attributes []AttributeSpec
}

// DefaultColumn derives a storage attribute from a dotted domain attribute.
func DefaultColumn(attr string) string {
	return strings.ReplaceAll(attr, ".", "_")
}

// StorageMap is every entry of one (domain, kind), in declaration order.
type StorageMap struct {
	Domain string
	Kind   Kind
	Key    string
	Root   string

	entries   []Entry
	byAttr    map[string]int
	byStorage map[string]int
}

// Entries returns the entries in declaration order.
func (m *StorageMap) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

// Entry looks up an entry by domain attribute.
func (m *StorageMap) Entry(attr string) (Entry, bool) {
	i, ok := m.byAttr[attr]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// EntryByStorage looks up a non-skipped entry by storage attribute.
func (m *StorageMap) EntryByStorage(column string) (Entry, bool) {
	i, ok := m.byStorage[column]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// Columns returns the storage attributes of non-skipped entries in
// declaration order.
func (m *StorageMap) Columns() []string {
	cols := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if !e.Skip {
			cols = append(cols, e.StorageAttr)
		}
	}
	return cols
}
