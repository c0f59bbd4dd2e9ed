package filestore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/quarry/internal/expr"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/storage"
)

func TestMissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "data"))

	rel, err := s.Relation(ctx, "posts")
	require.NoError(t, err)
	ok, err := rel.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertThenQuery(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "data"))

	require.NoError(t, s.Insert(ctx, "posts", storage.Row{"id": int64(1), "title": "Hello"}))
	require.NoError(t, s.Insert(ctx, "posts", storage.Row{"id": int64(2), "title": "World"}))

	data, err := os.ReadFile(s.Path("posts"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "rows:")
	assert.Contains(t, string(data), "title: World")

	rel, err := s.Relation(ctx, "posts")
	require.NoError(t, err)
	rows, err := rel.
		Where(storage.Compare{Column: "posts.title", Op: expr.OpEq, Value: ir.String("World")}).
		Rows(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["id"])
}

func TestReadHandWrittenFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	content := "rows:\n  - id: 1\n    views: 10\n  - id: 2\n    views: 30\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posts.yaml"), []byte(content), 0o644))

	s := New(dir)
	rel, err := s.Relation(ctx, "posts")
	require.NoError(t, err)
	rows, err := rel.Order(storage.Sort{Column: "posts.views", Desc: true}).Rows(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["id"])
	assert.Equal(t, int64(30), rows[0]["views"])
}

func TestWriteReplaces(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	require.NoError(t, s.Insert(ctx, "tags", storage.Row{"name": "a"}))
	require.NoError(t, s.Write(ctx, "tags", []storage.Row{{"name": "b"}, {"name": "c"}}))

	rows, err := s.Read(ctx, "tags")
	require.NoError(t, err)
	assert.Equal(t, []storage.Row{{"name": "b"}, {"name": "c"}}, rows)
}

func TestConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Insert(ctx, "events", storage.Row{"id": int64(i)}))
		}(i)
	}
	wg.Wait()

	rows, err := s.Read(ctx, "events")
	require.NoError(t, err)
	assert.Len(t, rows, 10)
}

func TestInvalidKey(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	_, err := s.Relation(ctx, "../escape")
	assert.Error(t, err)
	assert.Error(t, s.Insert(ctx, "a/b", storage.Row{"id": 1}))
}

func TestCorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posts.yaml"), []byte("rows: [\n"), 0o644))

	_, err := New(dir).Read(ctx, "posts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestReadsAndWritesTraceToLogger(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(t.TempDir(), WithLogger(zap.New(core).Sugar()))

	require.NoError(t, s.Write(ctx, "posts", []storage.Row{{"id": int64(1)}, {"id": int64(2)}}))
	_, err := s.Read(ctx, "posts")
	require.NoError(t, err)

	written := logs.FilterMessage("rows written").All()
	require.Len(t, written, 1)
	assert.Equal(t, int64(2), written[0].ContextMap()["count"])

	read := logs.FilterMessage("rows read").All()
	require.Len(t, read, 1)
	assert.Equal(t, "posts", read[0].ContextMap()["storage_key"])
}
