// Package sqlstore is the relational storage kind, backed by SQLite.
//
// Storage conditions compile to squirrel predicates; identifiers are
// checked against a strict pattern and every value is bound as a
// parameter.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/logger"
	"github.com/roach88/quarry/internal/storage"
)

// Store runs relations against a SQL database.
type Store struct {
	db  *sql.DB
	sq  squirrel.StatementBuilderType
	log *zap.SugaredLogger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger statements are traced to at debug level.
// A nil logger disables tracing.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) {
		if l == nil {
			l = zap.NewNop().Sugar()
		}
		s.log = l
	}
}

// Open creates or opens a SQLite database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to database")
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply pragmas")
	}

	return New(db, opts...), nil
}

// New wraps an existing connection. Statements are traced to the global
// logger named "sqlstore" unless WithLogger says otherwise.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		log: logger.Named("sqlstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "execute %q", pragma)
		}
	}
	return nil
}

// Pragma reads the current value of a pragma.
func (s *Store) Pragma(ctx context.Context, name string) (string, error) {
	if err := checkIdent("pragma", name); err != nil {
		return "", err
	}
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", errors.Wrapf(err, "query pragma %s", name)
	}
	return value, nil
}

// CreateTable creates key with untyped columns unless it already exists.
func (s *Store) CreateTable(ctx context.Context, key string, columns []string) error {
	if err := checkIdent("table", key); err != nil {
		return err
	}
	if len(columns) == 0 {
		return errors.NewInvalidRequestError("table %s needs at least one column", key)
	}
	for _, c := range columns {
		if err := checkIdent("column", c); err != nil {
			return err
		}
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", key, strings.Join(columns, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrapf(err, "create table %s", key)
	}
	return nil
}

// Insert implements storage.Writer. Columns are written in sorted order.
func (s *Store) Insert(ctx context.Context, key string, row storage.Row) error {
	if err := checkIdent("table", key); err != nil {
		return err
	}
	if len(row) == 0 {
		return errors.NewInvalidRequestError("no columns specified for insert into %s", key)
	}

	cols := make([]string, 0, len(row))
	for c := range row {
		if err := checkIdent("column", c); err != nil {
			return err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = row[c]
	}

	stmt, args, err := s.sq.Insert(key).Columns(cols...).Values(vals...).ToSql()
	if err != nil {
		return errors.Wrapf(err, "build insert into %s", key)
	}
	s.log.Debugw("sql exec", logger.FieldStorageKey, key, logger.FieldQuery, stmt)
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrapf(err, "insert into %s", key)
	}
	return nil
}

// Relation implements storage.Backend.
func (s *Store) Relation(ctx context.Context, key string) (storage.Relation, error) {
	if err := checkIdent("table", key); err != nil {
		return nil, err
	}
	return &relation{store: s, key: key}, nil
}

// relation is an immutable SELECT under construction.
type relation struct {
	store *Store
	key   string
	where storage.Condition
	order []storage.Sort
	limit int
}

func (r *relation) clone() *relation {
	c := *r
	c.order = append([]storage.Sort(nil), r.order...)
	return &c
}

func (r *relation) Where(cond storage.Condition) storage.Relation {
	c := r.clone()
	switch {
	case c.where == nil:
		c.where = cond
	case cond != nil:
		c.where = storage.Junction{Op: expr.And, Left: c.where, Right: cond}
	}
	return c
}

func (r *relation) Order(sorts ...storage.Sort) storage.Relation {
	c := r.clone()
	c.order = append(c.order, sorts...)
	return c
}

func (r *relation) Limit(n int) storage.Relation {
	c := r.clone()
	c.limit = n
	return c
}

// selectFrom starts a SELECT of columns with the relation's filter.
func (r *relation) selectFrom(columns ...string) (squirrel.SelectBuilder, error) {
	b := r.store.sq.Select(columns...).From(r.key)
	if r.where != nil {
		pred, err := Compile(r.where)
		if err != nil {
			return b, errors.Wrapf(err, "compile filter for %s", r.key)
		}
		b = b.Where(pred)
	}
	return b, nil
}

func (r *relation) orderBy() ([]string, error) {
	clauses := make([]string, 0, len(r.order))
	for _, s := range r.order {
		if err := checkIdent("column", s.Column); err != nil {
			return nil, err
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		clauses = append(clauses, s.Column+" "+dir)
	}
	return clauses, nil
}

func (r *relation) Count(ctx context.Context) (int, error) {
	var (
		b   squirrel.SelectBuilder
		err error
	)
	if r.limit > 0 {
		inner, ierr := r.selectFrom("1")
		if ierr != nil {
			return 0, ierr
		}
		b = r.store.sq.Select("COUNT(*)").FromSelect(inner.Limit(uint64(r.limit)), "bounded")
	} else {
		b, err = r.selectFrom("COUNT(*)")
		if err != nil {
			return 0, err
		}
	}

	stmt, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrapf(err, "build count for %s", r.key)
	}
	r.store.log.Debugw("sql query", logger.FieldStorageKey, r.key, logger.FieldQuery, stmt)

	var n int
	if err := r.store.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count %s", r.key)
	}
	return n, nil
}

func (r *relation) Exists(ctx context.Context) (bool, error) {
	b, err := r.selectFrom("1")
	if err != nil {
		return false, err
	}
	stmt, args, err := b.Limit(1).ToSql()
	if err != nil {
		return false, errors.Wrapf(err, "build exists for %s", r.key)
	}
	r.store.log.Debugw("sql query", logger.FieldStorageKey, r.key, logger.FieldQuery, stmt)

	rows, err := r.store.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return false, errors.Wrapf(err, "exists %s", r.key)
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

func (r *relation) Rows(ctx context.Context, offset, n int) ([]storage.Row, error) {
	take, ok := storage.Window(r.limit, offset, n)
	if !ok {
		return []storage.Row{}, nil
	}

	b, err := r.selectFrom("*")
	if err != nil {
		return nil, err
	}
	order, err := r.orderBy()
	if err != nil {
		return nil, err
	}
	if len(order) > 0 {
		b = b.OrderBy(order...)
	}
	switch {
	case take > 0:
		b = b.Limit(uint64(take))
		if offset > 0 {
			b = b.Offset(uint64(offset))
		}
	case offset > 0:
		// SQLite needs a LIMIT before OFFSET; -1 is unbounded.
		b = b.Suffix("LIMIT -1 OFFSET ?", offset)
	}

	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrapf(err, "build select for %s", r.key)
	}
	r.store.log.Debugw("sql query", logger.FieldStorageKey, r.key, logger.FieldQuery, stmt)

	rows, err := r.store.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", r.key)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]storage.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}

	out := []storage.Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		row := make(storage.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}
	return out, nil
}
