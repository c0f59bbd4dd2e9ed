package criteria

import (
	"math"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/grammar"
	"github.com/roach88/quarry/internal/transform"
)

// ParseSearch builds a criteria from a search string such as
//
//	blog.post filter published = true order created_at desc limit 10
func ParseSearch(text string) (*Criteria, error) {
	parsed, err := grammar.ParseSearch(text)
	if err != nil {
		return nil, errors.Wrapf(err, "search %q", text)
	}
	s, err := transform.ApplySearch(parsed)
	if err != nil {
		return nil, errors.Wrapf(err, "search %q", text)
	}
	return FromSearch(s)
}

// FromSearch assembles a criteria from a transformed search.
func FromSearch(s *transform.Search) (*Criteria, error) {
	c, err := New(s.Domain)
	if err != nil {
		return nil, err
	}
	if s.Filter != nil {
		c.Filter(s.Filter)
	}
	c.Order(s.Order)
	if s.Limit != nil {
		c.Limit(*s.Limit)
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromMap builds a criteria from the structured form:
//
//	{"domain": "blog.post", "filters": [...], "order": [...], "limit": 10}
//
// "page" and "per_page" are accepted as well. Unknown keys are rejected.
func FromMap(m map[string]any) (*Criteria, error) {
	raw, ok := m["domain"]
	if !ok {
		return nil, errors.NewInvalidRequestError("criteria map has no domain")
	}
	domain, ok := raw.(string)
	if !ok {
		return nil, errors.NewInvalidRequestError("criteria domain must be a string, got %T", raw)
	}

	c, err := New(domain)
	if err != nil {
		return nil, err
	}

	for _, key := range sortedKeys(m) {
		value := m[key]
		switch key {
		case "domain":
		case "filters", "filter":
			c.Filter(value)
		case "order":
			c.Order(value)
		case "limit", "page", "per_page":
			n, err := toInt(value)
			if err != nil {
				return nil, errors.Wrapf(err, "criteria %s", key)
			}
			switch key {
			case "limit":
				c.Limit(n)
			case "page":
				c.Page(n)
			default:
				c.PerPage(n)
			}
		default:
			return nil, errors.NewInvalidRequestError("unknown criteria key %q", key)
		}
	}

	if err := c.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// toInt accepts the integer shapes produced by YAML and JSON decoders.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, errors.NewInvalidRequestError("expected an integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, errors.NewInvalidRequestError("expected an integer, got %T", v)
	}
}
