package repository

import (
	"fmt"

	"github.com/roach88/quarry/internal/errors"
)

// NotFoundError reports an empty dataset for a criteria that demanded
// results. It matches errors.ErrNotFound.
type NotFoundError struct {
	Domain string
	Query  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found for %s", e.Domain, e.Query)
}

// Is matches errors.ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == errors.ErrNotFound
}

func newNotFound(domain, query string) error {
	return errors.Mark(&NotFoundError{Domain: domain, Query: query}, errors.ErrNotFound)
}
