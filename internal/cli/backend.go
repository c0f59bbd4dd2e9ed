package cli

import (
	"go.uber.org/zap"

	"github.com/roach88/quarry/internal/compiler"
	"github.com/roach88/quarry/internal/config"
	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/logger"
	"github.com/roach88/quarry/internal/mapping"
	"github.com/roach88/quarry/internal/storage"
	"github.com/roach88/quarry/internal/storage/filestore"
	"github.com/roach88/quarry/internal/storage/memory"
	"github.com/roach88/quarry/internal/storage/sqlstore"
)

// storageKinds maps config storage kinds onto mapping kinds.
var storageKinds = map[string]mapping.Kind{
	config.StorageMemory: mapping.KindMemory,
	config.StorageSQLite: mapping.KindRelational,
	config.StorageFile:   mapping.KindFile,
}

// openBackend opens the configured storage. The returned close function
// is never nil.
func openBackend(cfg config.StorageConfig) (storage.Backend, mapping.Kind, func() error, error) {
	kind, ok := storageKinds[cfg.Kind]
	if !ok {
		return nil, "", nil, errors.NewInvalidRequestError("unknown storage kind %q", cfg.Kind)
	}
	log := logger.Named("storage").With(logger.FieldKind, cfg.Kind)
	switch cfg.Kind {
	case config.StorageSQLite:
		st, err := sqlstore.Open(cfg.SQLitePath, sqlstore.WithLogger(log))
		if err != nil {
			return nil, "", nil, err
		}
		return st, kind, st.Close, nil
	case config.StorageFile:
		return filestore.New(cfg.FileDir, filestore.WithLogger(log)), kind, noClose, nil
	default:
		return memory.New(), kind, noClose, nil
	}
}

func noClose() error { return nil }

// closeBackend runs closeFn and logs a failure.
func closeBackend(log *zap.SugaredLogger, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Warnw("close storage", logger.FieldError, err)
	}
}

// loadRegistry compiles every mapping file under dir into a sealed
// registry.
func loadRegistry(dir, root string) (*mapping.Registry, []mapping.Spec, error) {
	specs, err := compiler.LoadDir(dir, compiler.Builtins(), root)
	if err != nil {
		return nil, nil, err
	}
	reg := mapping.NewRegistry()
	if err := compiler.RegisterAll(reg, specs); err != nil {
		return nil, specs, err
	}
	reg.Seal()
	return reg, specs, nil
}
