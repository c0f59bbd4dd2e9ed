package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/quarry/internal/config"
	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/mapping"
)

func TestCloseBackendLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core).Sugar()

	closeBackend(log, func() error { return errors.New("database is locked") })
	entries := logs.FilterMessage("close storage").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap()["error"], "database is locked")

	closeBackend(log, noClose)
	assert.Len(t, logs.FilterMessage("close storage").All(), 1, "successful close is silent")
}

func TestOpenBackend(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		backend, kind, closeFn, err := openBackend(config.StorageConfig{Kind: config.StorageSQLite, SQLitePath: ":memory:"})
		require.NoError(t, err)
		assert.NotNil(t, backend)
		assert.Equal(t, mapping.KindRelational, kind)
		assert.NoError(t, closeFn())
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, _, _, err := openBackend(config.StorageConfig{Kind: "dynamo"})
		require.Error(t, err)
		assert.True(t, errors.IsInvalidRequestError(err))
	})
}
