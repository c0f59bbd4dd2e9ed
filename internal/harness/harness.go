package harness

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/quarry/internal/compiler"
	"github.com/roach88/quarry/internal/entity"
	"github.com/roach88/quarry/internal/logger"
	"github.com/roach88/quarry/internal/mapper"
	"github.com/roach88/quarry/internal/mapping"
	"github.com/roach88/quarry/internal/repository"
	"github.com/roach88/quarry/internal/storage"
	"github.com/roach88/quarry/internal/storage/filestore"
	"github.com/roach88/quarry/internal/storage/memory"
	"github.com/roach88/quarry/internal/storage/sqlstore"
)

// DefaultRoot is the application root used when a scenario names none.
const DefaultRoot = "app"

// Computes are the compute functions scenario mappings may name.
var Computes = compiler.Builtins()

// Harness holds the repository a scenario queries.
type Harness struct {
	scenario *Scenario
	repo     *repository.Repository
	close    func() error
}

// Run executes a scenario against fresh storage and checks every query's
// expectations. The returned error covers setup failures only; failed
// expectations are recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	for _, q := range scenario.Queries {
		got := h.runQuery(ctx, q)
		check(result, q, &got)
		result.Queries = append(result.Queries, got)
	}
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario) (*Harness, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	root := scenario.Root
	if root == "" {
		root = DefaultRoot
	}
	kind := kindOf(scenario)

	reg, err := compileMappings(scenario, root)
	if err != nil {
		return nil, err
	}

	backend, closeFn, err := seed(ctx, scenario, kind, reg)
	if err != nil {
		return nil, err
	}

	repo, err := repository.New(repository.Options{
		Mapper:         mapper.New(root, reg),
		Kind:           kind,
		Backends:       storage.NewResolver(backend),
		Logger:         logger.Named("harness").With(logger.FieldComponent, scenario.Name),
		IDs:            repository.NewFixedGenerator(scenario.Name),
		DefaultPerPage: scenario.PerPage,
	})
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}
	return &Harness{scenario: scenario, repo: repo, close: closeFn}, nil
}

func kindOf(s *Scenario) mapping.Kind {
	if s.Kind == "" {
		return mapping.KindMemory
	}
	return s.Kind
}

// compileMappings registers the inline mappings followed by every mapping
// file, then seals the registry.
func compileMappings(s *Scenario, root string) (*mapping.Registry, error) {
	var specs []mapping.Spec
	if s.Mappings != "" {
		inline, err := compiler.CompileSource(s.Name+".cue", []byte(s.Mappings), Computes, root)
		if err != nil {
			return nil, fmt.Errorf("failed to compile mappings: %w", err)
		}
		specs = append(specs, inline...)
	}
	for _, file := range s.MappingFiles {
		fileSpecs, err := compiler.CompileFile(file, Computes, root)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s: %w", file, err)
		}
		specs = append(specs, fileSpecs...)
	}

	reg := mapping.NewRegistry()
	if err := compiler.RegisterAll(reg, specs); err != nil {
		return nil, fmt.Errorf("failed to register mappings: %w", err)
	}
	reg.Seal()
	return reg, nil
}

// seed loads the scenario rows into a fresh backend of the given kind.
func seed(ctx context.Context, s *Scenario, kind mapping.Kind, reg *mapping.Registry) (storage.Backend, func() error, error) {
	keys := make([]string, 0, len(s.Rows))
	for key := range s.Rows {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	switch kind {
	case mapping.KindFile:
		dir, err := os.MkdirTemp("", "quarry-harness-*")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
		cleanup := func() error { return os.RemoveAll(dir) }
		st := filestore.New(dir, filestore.WithLogger(logger.Named("harness").Named("filestore")))
		for _, key := range keys {
			if err := st.Write(ctx, key, toRows(s.Rows[key])); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("failed to seed %s: %w", key, err)
			}
		}
		return st, cleanup, nil

	case mapping.KindRelational:
		st, err := sqlstore.Open(":memory:", sqlstore.WithLogger(logger.Named("harness").Named("sqlstore")))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		if err := seedSQL(ctx, st, s, keys, reg); err != nil {
			st.Close()
			return nil, nil, err
		}
		return st, st.Close, nil

	default:
		st := memory.New()
		for _, key := range keys {
			st.Load(key, toRows(s.Rows[key]))
		}
		return st, func() error { return nil }, nil
	}
}

// seedSQL creates one table per relational storage key, with the mapped
// columns plus any column the seeded rows use, then inserts the rows.
func seedSQL(ctx context.Context, st *sqlstore.Store, s *Scenario, keys []string, reg *mapping.Registry) error {
	columns := make(map[string]map[string]bool)
	addColumn := func(key, col string) {
		if columns[key] == nil {
			columns[key] = make(map[string]bool)
		}
		columns[key][col] = true
	}
	for _, domain := range reg.Domains() {
		sm, err := reg.StorageMap(domain, mapping.KindRelational)
		if err != nil {
			continue
		}
		for _, col := range sm.Columns() {
			addColumn(sm.Key, col)
		}
	}
	for _, key := range keys {
		for _, row := range s.Rows[key] {
			for col := range row {
				addColumn(key, col)
			}
		}
	}

	tables := make([]string, 0, len(columns))
	for key := range columns {
		tables = append(tables, key)
	}
	sort.Strings(tables)
	for _, key := range tables {
		cols := make([]string, 0, len(columns[key]))
		for col := range columns[key] {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		if err := st.CreateTable(ctx, key, cols); err != nil {
			return fmt.Errorf("failed to create table %s: %w", key, err)
		}
	}

	for _, key := range keys {
		for _, row := range toRows(s.Rows[key]) {
			if err := st.Insert(ctx, key, row); err != nil {
				return fmt.Errorf("failed to seed %s: %w", key, err)
			}
		}
	}
	return nil
}

// toRows converts decoded YAML maps, widening ints the way storage reads do.
func toRows(in []map[string]any) []storage.Row {
	rows := make([]storage.Row, len(in))
	for i, m := range in {
		row := make(storage.Row, len(m))
		for k, v := range m {
			switch n := v.(type) {
			case int:
				row[k] = int64(n)
			case uint64:
				row[k] = int64(n)
			default:
				row[k] = v
			}
		}
		rows[i] = row
	}
	return rows
}

func (h *Harness) runQuery(ctx context.Context, q Query) QueryResult {
	got := QueryResult{Name: q.Name, Search: q.Search}
	fail := func(err error) QueryResult {
		got.Shape = ShapeError
		got.ErrorClass = classify(err)
		got.Err = err
		return got
	}

	c, err := h.repo.Criteria(q.Search)
	if err != nil {
		return fail(err)
	}
	switch q.Mode {
	case ModeFirst:
		c.First()
	case ModeLast:
		c.Last()
	case ModeAll:
		c.All()
	}
	if q.Page != 0 {
		c.Page(q.Page)
	}
	if q.PerPage != 0 {
		c.PerPage(q.PerPage)
	}
	if q.ErrorOnEmpty {
		c.ErrorOnEmptyDataset()
	}

	out, err := h.repo.Query(ctx, c)
	if err != nil {
		return fail(err)
	}

	switch v := out.(type) {
	case entity.Entity:
		if !entity.IsPresent(v) {
			got.Shape = ShapeNotFound
			return got
		}
		got.Shape = ShapeEntity
		got.IDs = []string{idText(v)}
	case *repository.Collection:
		items, err := v.Items(ctx)
		if err != nil {
			return fail(err)
		}
		total, err := v.TotalCount(ctx)
		if err != nil {
			return fail(err)
		}
		pages, err := v.TotalPages(ctx)
		if err != nil {
			return fail(err)
		}
		got.Shape = ShapeCollection
		got.Page = v.CurrentPage()
		got.PerPage = v.PageSize()
		got.Total = total
		got.Pages = pages
		for _, item := range items {
			got.IDs = append(got.IDs, idText(item))
		}
	default:
		return fail(fmt.Errorf("query returned %T", out))
	}
	return got
}

func idText(ent entity.Entity) string {
	v, ok := ent.Attribute("id")
	if !ok {
		return "?"
	}
	return fmt.Sprint(v)
}

// check compares one query result against its expectations.
func check(r *Result, q Query, got *QueryResult) {
	want := q.Expect
	if want.Error != "" {
		switch {
		case got.Shape != ShapeError:
			r.AddError("%s: expected %s error, got %s", q.Name, want.Error, got.Shape)
		case got.ErrorClass != want.Error:
			r.AddError("%s: expected %s error, got %s: %v", q.Name, want.Error, got.ErrorClass, got.Err)
		}
		return
	}
	if got.Shape == ShapeError {
		r.AddError("%s: unexpected error: %v", q.Name, got.Err)
		return
	}

	if want.NotFound != (got.Shape == ShapeNotFound) {
		r.AddError("%s: expected not_found=%t, got %s", q.Name, want.NotFound, got.Shape)
	}
	if want.Count != nil && *want.Count != got.Count() {
		r.AddError("%s: expected count %d, got %d", q.Name, *want.Count, got.Count())
	}
	if want.Total != nil && *want.Total != got.Total {
		r.AddError("%s: expected total %d, got %d", q.Name, *want.Total, got.Total)
	}
	if want.Pages != nil && *want.Pages != got.Pages {
		r.AddError("%s: expected %d pages, got %d", q.Name, *want.Pages, got.Pages)
	}
	if want.IDs != nil {
		ids := make([]string, len(want.IDs))
		for i, id := range want.IDs {
			ids[i] = fmt.Sprint(id)
		}
		if !slices.Equal(ids, got.IDs) {
			r.AddError("%s: expected ids [%s], got [%s]", q.Name, strings.Join(ids, ", "), strings.Join(got.IDs, ", "))
		}
	}
}
