package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/quarry/internal/mapping"
)

// Scenario is one end-to-end query test.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description says what the scenario validates.
	Description string `yaml:"description"`

	// Kind is the storage kind queried: memory (default), file or relational.
	Kind mapping.Kind `yaml:"kind,omitempty"`

	// Root is the application root the mappings default to. Defaults to "app".
	Root string `yaml:"root,omitempty"`

	// PerPage is the repository's default page size.
	PerPage int `yaml:"per_page,omitempty"`

	// Mappings holds inline CUE mapping declarations.
	Mappings string `yaml:"mappings,omitempty"`

	// MappingFiles lists CUE mapping files. LoadScenario resolves relative
	// paths against the scenario file's directory.
	MappingFiles []string `yaml:"mapping_files,omitempty"`

	// Rows seeds storage, keyed by storage key.
	Rows map[string][]map[string]any `yaml:"rows,omitempty"`

	// Queries run in order against the seeded storage.
	Queries []Query `yaml:"queries"`
}

// Query is a search plus the options the search grammar has no syntax for.
type Query struct {
	Name   string `yaml:"name"`
	Search string `yaml:"search"`

	// Mode is first, last or all. Empty means a paginated collection.
	Mode         string `yaml:"mode,omitempty"`
	Page         int    `yaml:"page,omitempty"`
	PerPage      int    `yaml:"per_page,omitempty"`
	ErrorOnEmpty bool   `yaml:"error_on_empty,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect lists the checks for one query. Unset fields are not checked.
type Expect struct {
	// Count is the number of entities returned (1 for a found single entity).
	Count *int `yaml:"count,omitempty"`

	// Total is the collection's total count across pages.
	Total *int `yaml:"total,omitempty"`

	// Pages is the collection's total page count.
	Pages *int `yaml:"pages,omitempty"`

	// IDs are the expected entity ids in order, compared as text.
	IDs []any `yaml:"ids,omitempty"`

	// NotFound expects the not-found entity from a single-mode query.
	NotFound bool `yaml:"not_found,omitempty"`

	// Error is the expected error class: not_found, invalid_criteria,
	// invalid_request, invalid_domain, unknown_entity, unknown_attribute,
	// cross_root or other (for example a search that does not parse).
	Error string `yaml:"error,omitempty"`
}

// Query modes.
const (
	ModeFirst = "first"
	ModeLast  = "last"
	ModeAll   = "all"
)

// LoadScenario reads and validates a scenario YAML file. Unknown fields
// are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, file := range scenario.MappingFiles {
		if !filepath.IsAbs(file) {
			scenario.MappingFiles[i] = filepath.Join(base, file)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Kind {
	case "", mapping.KindMemory, mapping.KindFile, mapping.KindRelational:
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	if s.PerPage < 0 {
		return fmt.Errorf("per_page must not be negative")
	}
	if s.Mappings == "" && len(s.MappingFiles) == 0 {
		return fmt.Errorf("mappings or mapping_files is required")
	}
	for _, file := range s.MappingFiles {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			return fmt.Errorf("mapping file not found: %s", file)
		}
	}
	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if err := validateQuery(i, &q); err != nil {
			return err
		}
		if seen[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		seen[q.Name] = true
	}
	return nil
}

var errorClasses = map[string]bool{
	ClassNotFound:         true,
	ClassInvalidCriteria:  true,
	ClassInvalidRequest:   true,
	ClassInvalidDomain:    true,
	ClassUnknownEntity:    true,
	ClassUnknownAttribute: true,
	ClassCrossRoot:        true,
	ClassOther:            true,
}

func validateQuery(index int, q *Query) error {
	if q.Name == "" {
		return fmt.Errorf("queries[%d]: name is required", index)
	}
	if q.Search == "" {
		return fmt.Errorf("queries[%d]: search is required", index)
	}
	switch q.Mode {
	case "", ModeFirst, ModeLast, ModeAll:
	default:
		return fmt.Errorf("queries[%d]: unknown mode %q", index, q.Mode)
	}
	if e := q.Expect.Error; e != "" {
		if !errorClasses[e] {
			return fmt.Errorf("queries[%d]: unknown error class %q", index, e)
		}
		if q.Expect.NotFound || q.Expect.Count != nil || len(q.Expect.IDs) > 0 {
			return fmt.Errorf("queries[%d]: error cannot be combined with result expectations", index)
		}
	}
	return nil
}
