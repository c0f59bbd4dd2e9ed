package repository

import (
	"context"
	"sync"

	"github.com/roach88/quarry/internal/entity"
)

type loadFunc func(ctx context.Context) ([]entity.Entity, int, error)

// Collection is a lazily loaded page of entities. The first accessor that
// needs data performs a single load; the result, including any error, is
// kept for the lifetime of the collection.
type Collection struct {
	page      int
	perPage   int
	paginated bool
	load      loadFunc

	once  sync.Once
	items []entity.Entity
	total int
	err   error
}

func newCollection(page, perPage int, paginated bool, load loadFunc) *Collection {
	return &Collection{page: page, perPage: perPage, paginated: paginated, load: load}
}

func emptyCollection(page, perPage int, paginated bool) *Collection {
	return newCollection(page, perPage, paginated, func(context.Context) ([]entity.Entity, int, error) {
		return []entity.Entity{}, 0, nil
	})
}

func (c *Collection) ensure(ctx context.Context) error {
	c.once.Do(func() {
		c.items, c.total, c.err = c.load(ctx)
	})
	return c.err
}

// Items returns the entities of the current page.
func (c *Collection) Items(ctx context.Context) ([]entity.Entity, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	return append([]entity.Entity(nil), c.items...), nil
}

// Len returns the number of entities on the current page.
func (c *Collection) Len(ctx context.Context) (int, error) {
	if err := c.ensure(ctx); err != nil {
		return 0, err
	}
	return len(c.items), nil
}

// TotalCount returns the number of matching entities across every page.
func (c *Collection) TotalCount(ctx context.Context) (int, error) {
	if err := c.ensure(ctx); err != nil {
		return 0, err
	}
	return c.total, nil
}

// TotalPages returns the page count. An unpaginated collection has one
// page, or none when empty.
func (c *Collection) TotalPages(ctx context.Context) (int, error) {
	if err := c.ensure(ctx); err != nil {
		return 0, err
	}
	if c.total == 0 {
		return 0, nil
	}
	if !c.paginated {
		return 1, nil
	}
	return (c.total + c.perPage - 1) / c.perPage, nil
}

// CurrentPage returns the 1-based page number.
func (c *Collection) CurrentPage() int {
	if !c.paginated {
		return 1
	}
	return c.page
}

// PageSize returns the page size, or 0 when pagination is disabled.
func (c *Collection) PageSize() int {
	if !c.paginated {
		return 0
	}
	return c.perPage
}

// Paginated reports whether the collection holds a single page.
func (c *Collection) Paginated() bool {
	return c.paginated
}
