package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/quarry/internal/errors"
)

// Resolver maps storage resolution keys to backends. A key without its
// own registration falls back to the default backend, if one is set.
type Resolver struct {
	mu       sync.RWMutex
	backends map[string]Backend
	fallback Backend
}

// NewResolver creates a resolver whose unregistered keys resolve to
// fallback. fallback may be nil.
func NewResolver(fallback Backend) *Resolver {
	return &Resolver{
		backends: make(map[string]Backend),
		fallback: fallback,
	}
}

// Register binds key to b.
func (r *Resolver) Register(key string, b Backend) error {
	if key == "" {
		return errors.NewInvalidRequestError("storage key is required")
	}
	if b == nil {
		return errors.NewInvalidRequestError("backend for %q is nil", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[key]; exists {
		return errors.Newf("backend with key %q already registered", key)
	}
	r.backends[key] = b
	return nil
}

// Backend returns the backend for key.
func (r *Resolver) Backend(key string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b, ok := r.backends[key]; ok {
		return b, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, errors.Newf("no backend registered for storage key %q", key)
}

// Relation resolves key and opens its relation.
func (r *Resolver) Relation(ctx context.Context, key string) (Relation, error) {
	b, err := r.Backend(key)
	if err != nil {
		return nil, err
	}
	return b.Relation(ctx, key)
}

// Keys returns the explicitly registered keys, sorted.
func (r *Resolver) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.backends))
	for k := range r.backends {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
