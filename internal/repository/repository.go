// Package repository executes criteria against storage and returns domain
// entities.
//
// Query accepts a *criteria.Criteria, a search string or a structured map.
// A criteria carrying an exec name is dispatched to the registered exec
// function and its result returned untouched. Otherwise the criteria's
// filter, order and limit are resolved through the mapper and applied to
// the relation of the domain's storage key, and the result is shaped by the
// criteria's mode:
//
//   - first / last: one entity, or an entity.NotFound placeholder
//   - page / all:   a lazily loaded *Collection
//
// When the relation is empty and the criteria asked for ErrorOnEmptyDataset,
// Query fails with a *NotFoundError instead.
package repository

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/quarry/internal/criteria"
	"github.com/roach88/quarry/internal/entity"
	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/logger"
	"github.com/roach88/quarry/internal/mapper"
	"github.com/roach88/quarry/internal/mapping"
	"github.com/roach88/quarry/internal/storage"
)

// ExecFunc is a custom query registered under a name. Its result is
// returned verbatim by Query.
type ExecFunc func(ctx context.Context, c *criteria.Criteria) (any, error)

// Options configures a Repository.
type Options struct {
	Mapper   *mapper.Mapper
	Kind     mapping.Kind
	Backends *storage.Resolver

	// Builders resolves per-domain entity builders. Nil means every domain
	// uses a DefaultBuilder with Constructors.
	Builders     *Builders
	Constructors map[string]entity.Constructor

	// Logger defaults to the global logger named "repository".
	Logger *zap.SugaredLogger
	// IDs defaults to UUIDv7Generator.
	IDs IDGenerator
	// DefaultPerPage applies when a criteria never called PerPage.
	DefaultPerPage int
}

// Repository runs criteria for one storage kind.
type Repository struct {
	opts  Options
	log   *zap.SugaredLogger
	mu    sync.RWMutex
	execs map[string]ExecFunc
}

// New validates opts and creates a repository.
func New(opts Options) (*Repository, error) {
	if opts.Mapper == nil {
		return nil, errors.NewInvalidRequestError("repository needs a mapper")
	}
	if opts.Backends == nil {
		return nil, errors.NewInvalidRequestError("repository needs a backend resolver")
	}
	if opts.Kind == "" {
		opts.Kind = mapping.KindRelational
	}
	if opts.Builders == nil {
		opts.Builders = NewBuilders(&DefaultBuilder{
			Mapper:       opts.Mapper,
			Kind:         opts.Kind,
			Constructors: opts.Constructors,
		})
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}
	if opts.DefaultPerPage < 0 {
		return nil, errors.NewInvalidRequestError("default per_page must not be negative, got %d", opts.DefaultPerPage)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("repository")
	}
	return &Repository{
		opts:  opts,
		log:   log,
		execs: make(map[string]ExecFunc),
	}, nil
}

// Kind returns the storage kind the repository reads.
func (r *Repository) Kind() mapping.Kind {
	return r.opts.Kind
}

// RegisterExec installs a named custom query.
func (r *Repository) RegisterExec(name string, fn ExecFunc) error {
	if name == "" || fn == nil {
		return errors.NewInvalidRequestError("exec needs a name and a function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.execs[name]; exists {
		return errors.Newf("exec %q already registered", name)
	}
	r.execs[name] = fn
	return nil
}

// Criteria normalizes input into a criteria: a *criteria.Criteria passes
// through, a string is parsed as a search and a map goes through
// criteria.FromMap.
func (r *Repository) Criteria(input any) (*criteria.Criteria, error) {
	var (
		c   *criteria.Criteria
		err error
	)
	switch in := input.(type) {
	case *criteria.Criteria:
		c = in
	case string:
		c, err = criteria.ParseSearch(in)
	case map[string]any:
		c, err = criteria.FromMap(in)
	default:
		return nil, errors.NewInvalidRequestError("cannot query with %T", input)
	}
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.NewInvalidRequestError("nil criteria")
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// Query runs input and returns an entity.Entity (single mode), a
// *Collection, or whatever an exec function returned.
func (r *Repository) Query(ctx context.Context, input any) (any, error) {
	c, err := r.Criteria(input)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, c)
}

// Find runs input in single mode. A criteria not already in first or last
// mode is switched to first.
func (r *Repository) Find(ctx context.Context, input any) (entity.Entity, error) {
	c, err := r.Criteria(input)
	if err != nil {
		return nil, err
	}
	if !c.Mode().Single() {
		c.First()
	}
	out, err := r.run(ctx, c)
	if err != nil {
		return nil, err
	}
	ent, ok := out.(entity.Entity)
	if !ok {
		return nil, errors.Newf("query for %s returned %T, not an entity", c.Domain(), out)
	}
	return ent, nil
}

// List runs input in collection mode.
func (r *Repository) List(ctx context.Context, input any) (*Collection, error) {
	c, err := r.Criteria(input)
	if err != nil {
		return nil, err
	}
	if c.Mode().Single() {
		return nil, errors.NewInvalidRequestError("criteria for %s is in %s mode, not a collection", c.Domain(), c.Mode())
	}
	out, err := r.run(ctx, c)
	if err != nil {
		return nil, err
	}
	coll, ok := out.(*Collection)
	if !ok {
		return nil, errors.Newf("query for %s returned %T, not a collection", c.Domain(), out)
	}
	return coll, nil
}

func (r *Repository) run(ctx context.Context, c *criteria.Criteria) (any, error) {
	domain := c.Domain().Name
	log := r.log.With(
		logger.FieldQueryID, r.opts.IDs.Generate(),
		logger.FieldDomain, domain,
	)

	if name := c.ExecName(); name != "" {
		r.mu.RLock()
		fn, ok := r.execs[name]
		r.mu.RUnlock()
		if !ok {
			return nil, errors.Mark(errors.Newf("no exec named %q", name), errors.ErrInvalidCriteria)
		}
		log.Debugw("exec", logger.FieldExec, name)
		return fn(ctx, c)
	}

	log.Debugw("query", logger.FieldQuery, c.String(), logger.FieldMode, string(c.Mode()))

	sm, err := r.opts.Mapper.StorageMap(domain, r.opts.Kind)
	if err != nil {
		return nil, err
	}
	rel, err := r.relation(ctx, c, sm.Key)
	if err != nil {
		return nil, err
	}

	limited := rel
	if n, ok := c.MaxResults(); ok {
		limited = rel.Limit(n)
	}

	exists, err := limited.Exists(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "check %s for rows", sm.Key)
	}
	if !exists {
		switch {
		case c.ErrorOnEmpty():
			log.Warnw("empty dataset", logger.FieldQuery, c.String())
			return nil, newNotFound(domain, c.String())
		case c.Mode().Single():
			return entity.NewNotFound(domain), nil
		default:
			page, perPage, paginated := r.paging(c)
			return emptyCollection(page, perPage, paginated), nil
		}
	}

	if c.Mode().Single() {
		return r.single(ctx, c, rel, limited, sm)
	}
	return r.collection(c, rel, limited, sm, log), nil
}

// relation applies the criteria's filter and order. The limit is left to
// the caller, since entities merged from several rows are limited as a
// whole.
func (r *Repository) relation(ctx context.Context, c *criteria.Criteria, key string) (storage.Relation, error) {
	kind := r.opts.Kind
	cond, err := r.opts.Mapper.Resolve(kind, c.Expression())
	if err != nil {
		return nil, err
	}
	sorts, err := r.opts.Mapper.ResolveOrder(kind, c.Ordering())
	if err != nil {
		return nil, err
	}

	rel, err := r.opts.Backends.Relation(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", key)
	}
	if cond != nil {
		rel = rel.Where(cond)
	}
	if len(sorts) > 0 {
		rel = rel.Order(sorts...)
	}
	return rel, nil
}

// single picks the first or last row of limited and builds its entity
// from every matching row sharing its id.
func (r *Repository) single(ctx context.Context, c *criteria.Criteria, rel, limited storage.Relation, sm *mapping.StorageMap) (entity.Entity, error) {
	offset := 0
	if c.Mode() == criteria.ModeLast {
		n, err := limited.Count(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "count %s", sm.Key)
		}
		offset = n - 1
	}
	rows, err := limited.Rows(ctx, offset, 1)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", sm.Key)
	}
	if len(rows) == 0 {
		return entity.NewNotFound(sm.Domain), nil
	}
	if rows, err = siblings(ctx, rel, sm, rows[0]); err != nil {
		return nil, err
	}
	return r.opts.Builders.Resolve(sm.Domain).Build(sm.Domain, rows)
}

// siblings returns the rows of rel sharing row's id, or row alone when the
// domain maps no id or row has none.
func siblings(ctx context.Context, rel storage.Relation, sm *mapping.StorageMap, row storage.Row) ([]storage.Row, error) {
	col := idColumn(sm)
	if col == "" || row[col] == nil || !hashable(row[col]) {
		return []storage.Row{row}, nil
	}
	id, err := ir.FromNative(row[col])
	if err != nil {
		return nil, errors.Wrapf(err, "id of %s", sm.Key)
	}
	rows, err := rel.Where(storage.Compare{Column: sm.Key + "." + col, Op: expr.OpEq, Value: id}).Rows(ctx, 0, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s rows for id %v", sm.Key, row[col])
	}
	if len(rows) == 0 {
		return []storage.Row{row}, nil
	}
	return rows, nil
}

func (r *Repository) paging(c *criteria.Criteria) (page, perPage int, paginated bool) {
	perPage = c.PageSize()
	if !c.PerPageSet() && r.opts.DefaultPerPage > 0 {
		perPage = r.opts.DefaultPerPage
	}
	return c.PageNumber(), perPage, !c.PaginationDisabled()
}

// collection pages over entities. Without an id mapping every row is an
// entity and paging happens in storage. With one, the matching rows are
// read once and grouped by id, so an entity never straddles two pages and
// the total counts entities.
func (r *Repository) collection(c *criteria.Criteria, rel, limited storage.Relation, sm *mapping.StorageMap, log *zap.SugaredLogger) *Collection {
	page, perPage, paginated := r.paging(c)
	builder := r.opts.Builders.Resolve(sm.Domain)
	idCol := idColumn(sm)

	pageRows := func(ctx context.Context) ([][]storage.Row, int, error) {
		if idCol == "" {
			total, err := limited.Count(ctx)
			if err != nil {
				return nil, 0, errors.Wrapf(err, "count %s", sm.Key)
			}
			offset, n := 0, 0
			if paginated {
				offset, n = (page-1)*perPage, perPage
			}
			rows, err := limited.Rows(ctx, offset, n)
			if err != nil {
				return nil, 0, errors.Wrapf(err, "read %s", sm.Key)
			}
			return groupRows(rows, ""), total, nil
		}

		rows, err := rel.Rows(ctx, 0, 0)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "read %s", sm.Key)
		}
		groups := groupRows(rows, idCol)
		if n, ok := c.MaxResults(); ok && len(groups) > n {
			groups = groups[:n]
		}
		total := len(groups)
		if paginated {
			lo := min((page-1)*perPage, total)
			groups = groups[lo:min(lo+perPage, total)]
		}
		return groups, total, nil
	}

	load := func(ctx context.Context) ([]entity.Entity, int, error) {
		start := time.Now()
		groups, total, err := pageRows(ctx)
		if err != nil {
			return nil, 0, err
		}

		items := make([]entity.Entity, 0, len(groups))
		for _, group := range groups {
			ent, err := builder.Build(sm.Domain, group)
			if err != nil {
				return nil, 0, err
			}
			items = append(items, ent)
		}

		log.Debugw("collection loaded",
			logger.FieldPage, page,
			logger.FieldPerPage, perPage,
			logger.FieldCount, len(items),
			logger.FieldDuration, time.Since(start).Milliseconds(),
		)
		return items, total, nil
	}
	return newCollection(page, perPage, paginated, load)
}

// idColumn returns the storage attribute of the domain's "id" attribute,
// or "" when it has none.
func idColumn(sm *mapping.StorageMap) string {
	e, ok := sm.Entry("id")
	if !ok || e.Skip {
		return ""
	}
	return e.StorageAttr
}

// groupRows gathers rows sharing an id value, in order of first
// appearance. Without an id column, or for rows with a nil id, every row
// stands alone.
func groupRows(rows []storage.Row, idCol string) [][]storage.Row {
	groups := make([][]storage.Row, 0, len(rows))
	if idCol == "" {
		for _, row := range rows {
			groups = append(groups, []storage.Row{row})
		}
		return groups
	}

	index := make(map[any]int)
	for _, row := range rows {
		id := row[idCol]
		if id == nil || !hashable(id) {
			groups = append(groups, []storage.Row{row})
			continue
		}
		if i, ok := index[id]; ok {
			groups[i] = append(groups[i], row)
			continue
		}
		index[id] = len(groups)
		groups = append(groups, []storage.Row{row})
	}
	return groups
}

func hashable(v any) bool {
	switch v.(type) {
	case string, int, int32, int64, uint, uint32, uint64, float32, float64, bool:
		return true
	default:
		return false
	}
}

// Save writes ent through the backend of its storage key, which must
// implement storage.Writer. Domain attributes in exclude are not written.
func (r *Repository) Save(ctx context.Context, ent entity.Entity, exclude ...string) error {
	if ent == nil || !entity.IsPresent(ent) {
		return errors.NewInvalidRequestError("cannot save an absent entity")
	}
	sm, err := r.opts.Mapper.StorageMap(ent.Domain(), r.opts.Kind)
	if err != nil {
		return err
	}
	row, err := r.opts.Mapper.ToStorage(ent, r.opts.Kind, exclude...)
	if err != nil {
		return err
	}
	backend, err := r.opts.Backends.Backend(sm.Key)
	if err != nil {
		return err
	}
	w, ok := backend.(storage.Writer)
	if !ok {
		return errors.Newf("backend for %s is read-only", sm.Key)
	}
	if err := w.Insert(ctx, sm.Key, row); err != nil {
		return errors.Wrapf(err, "save %s", ent.Domain())
	}
	r.log.Debugw("saved", logger.FieldDomain, ent.Domain(), logger.FieldStorageKey, sm.Key)
	return nil
}
