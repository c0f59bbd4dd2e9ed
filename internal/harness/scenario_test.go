package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/mapping"
)

const validScenario = `
name: valid
description: "A scenario that loads"
kind: file
per_page: 5
mapping_files:
  - blog.cue
rows:
  posts:
    - {post_id: 1, title: "Alpha"}
queries:
  - name: all
    search: "blog.post order id"
    mode: all
    expect:
      count: 1
      ids: [1]
`

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.cue"), []byte(`mapping: {}`), 0644))
	path := writeScenario(t, dir, validScenario)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "valid", scenario.Name)
	assert.Equal(t, mapping.KindFile, scenario.Kind)
	assert.Equal(t, 5, scenario.PerPage)
	assert.Equal(t, []string{filepath.Join(dir, "blog.cue")}, scenario.MappingFiles)
	require.Len(t, scenario.Rows["posts"], 1)
	assert.Equal(t, "Alpha", scenario.Rows["posts"][0]["title"])

	require.Len(t, scenario.Queries, 1)
	q := scenario.Queries[0]
	assert.Equal(t, ModeAll, q.Mode)
	require.NotNil(t, q.Expect.Count)
	assert.Equal(t, 1, *q.Expect.Count)
	assert.Equal(t, []any{1}, q.Expect.IDs)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: typo
description: "query instead of queries"
mappings: "mapping: {}"
query:
  - name: q
    search: blog.post
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:        "s",
			Description: "d",
			Mappings:    "mapping: {}",
			Queries:     []Query{{Name: "q", Search: "blog.post"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(s *Scenario)
		want   string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"no name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"no description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"unknown kind", func(s *Scenario) { s.Kind = "cloud" }, `unknown kind "cloud"`},
		{"negative per_page", func(s *Scenario) { s.PerPage = -1 }, "per_page must not be negative"},
		{"no mappings", func(s *Scenario) { s.Mappings = "" }, "mappings or mapping_files is required"},
		{"missing mapping file", func(s *Scenario) { s.MappingFiles = []string{"/nonexistent/blog.cue"} }, "mapping file not found"},
		{"no queries", func(s *Scenario) { s.Queries = nil }, "queries list is required"},
		{"query without name", func(s *Scenario) { s.Queries[0].Name = "" }, "queries[0]: name is required"},
		{"query without search", func(s *Scenario) { s.Queries[0].Search = "" }, "queries[0]: search is required"},
		{"unknown mode", func(s *Scenario) { s.Queries[0].Mode = "middle" }, `queries[0]: unknown mode "middle"`},
		{"duplicate query", func(s *Scenario) { s.Queries = append(s.Queries, s.Queries[0]) }, `queries[1]: duplicate name "q"`},
		{"unknown error class", func(s *Scenario) { s.Queries[0].Expect.Error = "boom" }, `unknown error class "boom"`},
		{"error with results", func(s *Scenario) {
			s.Queries[0].Expect.Error = ClassNotFound
			s.Queries[0].Expect.NotFound = true
		}, "error cannot be combined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
