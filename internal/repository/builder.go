package repository

import (
	"sync"

	"github.com/roach88/quarry/internal/entity"
	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/mapper"
	"github.com/roach88/quarry/internal/mapping"
	"github.com/roach88/quarry/internal/storage"
)

// Builder turns the storage rows backing one entity into that entity.
type Builder interface {
	Build(domain string, rows []storage.Row) (entity.Entity, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(domain string, rows []storage.Row) (entity.Entity, error)

// Build implements Builder.
func (f BuilderFunc) Build(domain string, rows []storage.Row) (entity.Entity, error) {
	return f(domain, rows)
}

// DefaultBuilder merges the rows, expands them with the mapper and hands
// the attribute hash to the domain's constructor. Domains without a
// constructor get an entity.Record.
type DefaultBuilder struct {
	Mapper       *mapper.Mapper
	Kind         mapping.Kind
	Constructors map[string]entity.Constructor
}

// Build implements Builder. Later rows fill attributes that earlier rows
// left nil.
func (b *DefaultBuilder) Build(domain string, rows []storage.Row) (entity.Entity, error) {
	if len(rows) == 0 {
		return nil, errors.Newf("no rows to build %s", domain)
	}
	merged := make(storage.Row)
	for _, row := range rows {
		for k, v := range row {
			if cur, ok := merged[k]; !ok || cur == nil {
				merged[k] = v
			}
		}
	}

	hash, err := b.Mapper.ToEntityHash(domain, b.Kind, merged)
	if err != nil {
		return nil, err
	}

	ctor, ok := b.Constructors[domain]
	if !ok {
		ctor = entity.RecordConstructor(domain)
	}
	ent, err := ctor(hash)
	if err != nil {
		return nil, errors.Wrapf(err, "construct %s", domain)
	}
	return ent, nil
}

// Builders resolves the builder for a domain, falling back to a default.
type Builders struct {
	mu       sync.RWMutex
	byDomain map[string]Builder
	fallback Builder
}

// NewBuilders creates a registry whose unregistered domains use fallback.
func NewBuilders(fallback Builder) *Builders {
	return &Builders{
		byDomain: make(map[string]Builder),
		fallback: fallback,
	}
}

// Register installs b for domain.
func (r *Builders) Register(domain string, b Builder) error {
	if b == nil {
		return errors.NewInvalidRequestError("builder for %s is nil", domain)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byDomain[domain]; exists {
		return errors.Newf("builder for %s already registered", domain)
	}
	r.byDomain[domain] = b
	return nil
}

// Resolve returns the builder for domain.
func (r *Builders) Resolve(domain string) Builder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.byDomain[domain]; ok {
		return b
	}
	return r.fallback
}
