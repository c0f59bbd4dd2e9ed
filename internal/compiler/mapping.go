// Package compiler turns declarative CUE mapping files into mapping specs.
//
// A mapping file declares, per domain and storage kind, the storage key
// and the attribute correspondences:
//
//	mapping: "blog.post": relational: {
//		key:  "posts"
//		root: "app" // optional, defaults to the loader's root
//		attributes: {
//			id:            "post_id"        // storage attribute
//			title:         {}               // default storage attribute
//			"author.name": "author_name"
//			draft:         {skip: true}
//			slug:          {column: "slug", compute: "slugify"}
//		}
//	}
//
// compute names a function from the table passed to the compiler.
// Attributes keep their declaration order.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/quarry/internal/mapping"
)

// Computes resolves compute function names used in mapping files.
type Computes map[string]mapping.ComputeFunc

var knownKinds = map[mapping.Kind]bool{
	mapping.KindRelational: true,
	mapping.KindFile:       true,
	mapping.KindMemory:     true,
}

// CompileMappings reads the top-level "mapping" struct of v. A missing
// struct yields no specs.
func CompileMappings(v cue.Value, computes Computes, defaultRoot string) ([]mapping.Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	mappingsVal := v.LookupPath(cue.ParsePath("mapping"))
	if !mappingsVal.Exists() {
		return nil, nil
	}

	domains, err := mappingsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []mapping.Spec
	for domains.Next() {
		domain := domains.Label()
		kinds, err := domains.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for kinds.Next() {
			kind := mapping.Kind(kinds.Label())
			spec, err := CompileStorageMap(domain, kind, kinds.Value(), computes, defaultRoot)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

// CompileStorageMap parses one (domain, kind) block.
func CompileStorageMap(domain string, kind mapping.Kind, v cue.Value, computes Computes, defaultRoot string) (mapping.Spec, error) {
	field := fmt.Sprintf("mapping.%s.%s", domain, kind)
	spec := mapping.Spec{Domain: domain, Kind: kind, Root: defaultRoot}

	if !knownKinds[kind] {
		return spec, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unknown storage kind %q (want relational, file or memory)", kind),
			Pos:     v.Pos(),
		}
	}

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if !keyVal.Exists() {
		return spec, &CompileError{Field: field + ".key", Message: "key is required", Pos: v.Pos()}
	}
	key, err := keyVal.String()
	if err != nil {
		return spec, formatCUEError(err)
	}
	spec.Key = key

	if rootVal := v.LookupPath(cue.ParsePath("root")); rootVal.Exists() {
		root, err := rootVal.String()
		if err != nil {
			return spec, formatCUEError(err)
		}
		spec.Root = root
	}
	if spec.Root == "" {
		return spec, &CompileError{Field: field + ".root", Message: "root is required when no default root is configured", Pos: v.Pos()}
	}

	attrsVal := v.LookupPath(cue.ParsePath("attributes"))
	if !attrsVal.Exists() {
		return spec, nil
	}
	iter, err := attrsVal.Fields()
	if err != nil {
		return spec, formatCUEError(err)
	}
	for iter.Next() {
		attr, err := compileAttribute(field, iter.Label(), iter.Value(), computes)
		if err != nil {
			return spec, err
		}
		spec.Attributes = append(spec.Attributes, attr)
	}
	return spec, nil
}

// compileAttribute accepts a column string or a struct with optional
// column, skip and compute fields.
func compileAttribute(field, name string, v cue.Value, computes Computes) (mapping.AttributeSpec, error) {
	attr := mapping.AttributeSpec{Name: name}
	field = field + ".attributes." + name

	switch v.IncompleteKind() {
	case cue.StringKind:
		column, err := v.String()
		if err != nil {
			return attr, formatCUEError(err)
		}
		attr.Column = column
		return attr, nil
	case cue.StructKind:
	default:
		return attr, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be a column string or a struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	if colVal := v.LookupPath(cue.ParsePath("column")); colVal.Exists() {
		column, err := colVal.String()
		if err != nil {
			return attr, formatCUEError(err)
		}
		attr.Column = column
	}

	if skipVal := v.LookupPath(cue.ParsePath("skip")); skipVal.Exists() {
		skip, err := skipVal.Bool()
		if err != nil {
			return attr, formatCUEError(err)
		}
		attr.Skip = skip
	}

	if computeVal := v.LookupPath(cue.ParsePath("compute")); computeVal.Exists() {
		name, err := computeVal.String()
		if err != nil {
			return attr, formatCUEError(err)
		}
		fn, ok := computes[name]
		if !ok {
			return attr, &CompileError{
				Field:   field + ".compute",
				Message: fmt.Sprintf("unknown compute function %q", name),
				Pos:     computeVal.Pos(),
			}
		}
		attr.Compute = fn
	}

	iter, err := v.Fields()
	if err != nil {
		return attr, formatCUEError(err)
	}
	for iter.Next() {
		switch iter.Label() {
		case "column", "skip", "compute":
		default:
			return attr, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("unknown attribute option %q", iter.Label()),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return attr, nil
}
