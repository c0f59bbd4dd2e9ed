package mapping

import (
	"sort"
	"strings"
	"sync"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
)

// Registry maps domain name to storage kind to StorageMap.
type Registry struct {
	mu     sync.RWMutex
	maps   map[string]map[Kind]*StorageMap
	sealed bool
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{maps: make(map[string]map[Kind]*StorageMap)}
}

// Register adds the storage map described by spec. Registering the same
// (domain, kind) twice fails, as does registering after Seal.
func (r *Registry) Register(spec Spec) error {
	sm, err := build(spec)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return errors.Wrapf(errors.ErrRegistrySealed, "register %s/%s", spec.Domain, spec.Kind)
	}
	kinds, ok := r.maps[spec.Domain]
	if !ok {
		kinds = make(map[Kind]*StorageMap)
		r.maps[spec.Domain] = kinds
	}
	if _, exists := kinds[spec.Kind]; exists {
		return errors.Newf("storage map for %s/%s already registered", spec.Domain, spec.Kind)
	}
	kinds[spec.Kind] = sm
	return nil
}

func build(spec Spec) (*StorageMap, error) {
	feature, basename, found := strings.Cut(spec.Domain, ".")
	if !found {
		return nil, errors.Mark(errors.Newf("mapping domain %q has no feature or global prefix", spec.Domain), errors.ErrInvalidDomain)
	}
	if err := expr.ValidatePath([]string{feature, basename}); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "mapping domain %q", spec.Domain), errors.ErrInvalidDomain)
	}
	if spec.Kind == "" {
		return nil, errors.NewInvalidRequestError("mapping %s: storage kind is required", spec.Domain)
	}
	if spec.Key == "" {
		return nil, errors.NewInvalidRequestError("mapping %s/%s: storage key is required", spec.Domain, spec.Kind)
	}
	if spec.Root == "" {
		return nil, errors.NewInvalidRequestError("mapping %s/%s: application root is required", spec.Domain, spec.Kind)
	}

	sm := &StorageMap{
		Domain:    spec.Domain,
		Kind:      spec.Kind,
		Key:       spec.Key,
		Root:      spec.Root,
		entries:   make([]Entry, 0, len(spec.Attributes)),
		byAttr:    make(map[string]int, len(spec.Attributes)),
		byStorage: make(map[string]int, len(spec.Attributes)),
	}
	for _, attr := range spec.Attributes {
		if err := expr.ValidatePath(expr.SplitPath(attr.Name)); err != nil {
			return nil, errors.NewInvalidRequestError("mapping %s/%s: attribute %q: %v", spec.Domain, spec.Kind, attr.Name, err)
		}
		if _, dup := sm.byAttr[attr.Name]; dup {
			return nil, errors.NewInvalidRequestError("mapping %s/%s: attribute %q declared twice", spec.Domain, spec.Kind, attr.Name)
		}
		column := attr.Column
		if column == "" {
			column = DefaultColumn(attr.Name)
		}
		entry := Entry{
			DomainAttr:  attr.Name,
			StorageAttr: column,
			Domain:      spec.Domain,
			Kind:        spec.Kind,
			Skip:        attr.Skip,
			Compute:     attr.Compute,
			Root:        spec.Root,
		}
		idx := len(sm.entries)
		if !entry.Skip {
			if other, dup := sm.byStorage[column]; dup {
				return nil, errors.NewInvalidRequestError("mapping %s/%s: attributes %q and %q share storage attribute %q",
					spec.Domain, spec.Kind, sm.entries[other].DomainAttr, attr.Name, column)
			}
			sm.byStorage[column] = idx
		}
		sm.entries = append(sm.entries, entry)
		sm.byAttr[attr.Name] = idx
	}
	return sm, nil
}

// Seal ends the boot phase. Later Register calls fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// EntityRegistered reports whether domain has any storage map.
func (r *Registry) EntityRegistered(domain string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.maps[domain]) > 0
}

// AttributeRegistered reports whether any storage map of domain declares attr.
func (r *Registry) AttributeRegistered(domain, attr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sm := range r.maps[domain] {
		if _, ok := sm.byAttr[attr]; ok {
			return true
		}
	}
	return false
}

// StorageMap returns the storage map of (domain, kind).
func (r *Registry) StorageMap(domain string, kind Kind) (*StorageMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds, ok := r.maps[domain]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownEntity, "domain %q", domain)
	}
	sm, ok := kinds[kind]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownEntity, "domain %q has no %s storage map", domain, kind)
	}
	return sm, nil
}

// Entries returns every entry of (domain, kind) in declaration order.
func (r *Registry) Entries(domain string, kind Kind) ([]Entry, error) {
	sm, err := r.StorageMap(domain, kind)
	if err != nil {
		return nil, err
	}
	return sm.Entries(), nil
}

// Entry returns the entry for attr in (domain, kind). It fails when the
// attribute is not declared.
func (r *Registry) Entry(domain, attr string, kind Kind) (Entry, error) {
	sm, err := r.StorageMap(domain, kind)
	if err != nil {
		return Entry{}, err
	}
	e, ok := sm.Entry(attr)
	if !ok {
		return Entry{}, errors.Wrapf(errors.ErrUnknownAttribute, "attribute %q of %s/%s", attr, domain, kind)
	}
	return e, nil
}

// Domains returns every registered domain, sorted.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.maps))
	for d := range r.maps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Kinds returns the storage kinds registered for domain, sorted.
func (r *Registry) Kinds(domain string) []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.maps[domain]))
	for k := range r.maps[domain] {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
