// Package filestore is the file storage kind. Each storage key is a YAML
// file of rows under one directory:
//
//	rows:
//	  - id: 1
//	    title: Hello
//
// Reads take a shared file lock and writes an exclusive one, so several
// processes can share the directory. Filtering happens in memory.
package filestore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/logger"
	"github.com/roach88/quarry/internal/storage"
	"github.com/roach88/quarry/internal/storage/memory"
)

const (
	lockTimeout = 3 * time.Second
	lockRetry   = 50 * time.Millisecond
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

type document struct {
	Rows []map[string]any `yaml:"rows"`
}

// Store reads and writes row files in dir.
type Store struct {
	dir string
	mu  sync.RWMutex
	log *zap.SugaredLogger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger file reads and writes are traced to. A nil
// logger disables tracing.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) {
		if l == nil {
			l = zap.NewNop().Sugar()
		}
		s.log = l
	}
}

// New creates a store rooted at dir. The directory is created on first
// write. Without WithLogger the store traces to the global logger named
// "filestore".
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, log: logger.Named("filestore")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the row file of key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".yaml")
}

func (s *Store) lock(key string) *flock.Flock {
	return flock.New(filepath.Join(s.dir, key+".lock"))
}

func checkKey(key string) error {
	if !keyPattern.MatchString(key) {
		return errors.NewInvalidRequestError("invalid storage key %q", key)
	}
	return nil
}

// Relation implements storage.Backend. A missing file is an empty table.
func (s *Store) Relation(ctx context.Context, key string) (storage.Relation, error) {
	rows, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return memory.NewRelation(key, rows), nil
}

// Read returns every row stored under key.
func (s *Store) Read(ctx context.Context, key string) ([]storage.Row, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return []storage.Row{}, nil
	}

	fl := s.lock(key)
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := fl.TryRLockContext(lockCtx, lockRetry)
	if err != nil {
		return nil, errors.Wrapf(err, "acquire read lock for %s", key)
	}
	if !locked {
		return nil, errors.Newf("could not acquire read lock for %s", key)
	}
	defer func() { _ = fl.Unlock() }()

	rows, err := s.readLocked(key)
	if err != nil {
		return nil, err
	}
	s.log.Debugw("rows read", logger.FieldStorageKey, key, logger.FieldCount, len(rows))
	return rows, nil
}

func (s *Store) readLocked(key string) ([]storage.Row, error) {
	data, err := os.ReadFile(s.Path(key))
	if os.IsNotExist(err) {
		return []storage.Row{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.Path(key))
	}
	if len(data) == 0 {
		return []storage.Row{}, nil
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.Path(key))
	}
	rows := make([]storage.Row, len(doc.Rows))
	for i, r := range doc.Rows {
		row := make(storage.Row, len(r))
		for k, v := range r {
			row[k] = normalize(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// normalize widens YAML integers to int64, matching the other kinds.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return v
	}
}

// Insert implements storage.Writer.
func (s *Store) Insert(ctx context.Context, key string, row storage.Row) error {
	return s.update(ctx, key, func(rows []storage.Row) []storage.Row {
		return append(rows, row.Clone())
	})
}

// Write replaces every row under key.
func (s *Store) Write(ctx context.Context, key string, rows []storage.Row) error {
	return s.update(ctx, key, func([]storage.Row) []storage.Row {
		return rows
	})
}

func (s *Store) update(ctx context.Context, key string, fn func([]storage.Row) []storage.Row) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", s.dir)
	}

	fl := s.lock(key)
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(lockCtx, lockRetry)
	if err != nil {
		return errors.Wrapf(err, "acquire write lock for %s", key)
	}
	if !locked {
		return errors.Newf("could not acquire write lock for %s", key)
	}
	defer func() { _ = fl.Unlock() }()

	rows, err := s.readLocked(key)
	if err != nil {
		return err
	}
	rows = fn(rows)
	if err := s.writeLocked(key, rows); err != nil {
		return err
	}
	s.log.Debugw("rows written", logger.FieldStorageKey, key, logger.FieldCount, len(rows))
	return nil
}

// writeLocked replaces the file atomically through a temp file.
func (s *Store) writeLocked(key string, rows []storage.Row) error {
	doc := document{Rows: make([]map[string]any, len(rows))}
	for i, r := range rows {
		doc.Rows[i] = map[string]any(r)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return errors.Wrapf(err, "replace %s", s.Path(key))
	}
	return nil
}
