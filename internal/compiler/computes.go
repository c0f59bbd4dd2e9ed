package compiler

import (
	"strings"

	"github.com/roach88/quarry/internal/entity"
	"github.com/roach88/quarry/internal/mapping"
)

// Builtins returns the compute functions every loader offers:
//
//	slugify  lowercases and joins words with dashes
//	upper    uppercases
//	lower    lowercases
//	trim     strips surrounding whitespace
//
// Non-string values pass through unchanged.
func Builtins() Computes {
	return Computes{
		"slugify": stringCompute(func(s string) string {
			return strings.Join(strings.Fields(strings.ToLower(s)), "-")
		}),
		"upper": stringCompute(strings.ToUpper),
		"lower": stringCompute(strings.ToLower),
		"trim":  stringCompute(strings.TrimSpace),
	}
}

func stringCompute(fn func(string) string) mapping.ComputeFunc {
	return func(v any, _ entity.Entity) (any, error) {
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		return fn(s), nil
	}
}
