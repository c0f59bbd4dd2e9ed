package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins(t *testing.T) {
	computes := Builtins()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"slugify", "  Hello  Big World ", "hello-big-world"},
		{"upper", "abc", "ABC"},
		{"lower", "AbC", "abc"},
		{"trim", "  x  ", "x"},
		{"upper", 42, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := computes[tt.name]
			require.True(t, ok)
			got, err := fn(tt.in, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltinsCompileFromMappingFile(t *testing.T) {
	specs, err := CompileSource("m.cue", []byte(`
mapping: "blog.post": memory: {
	key: "posts"
	attributes: {
		title: {}
		slug: {compute: "slugify"}
	}
}`), Builtins(), "app")
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.Len(t, specs[0].Attributes, 2)
	require.NotNil(t, specs[0].Attributes[1].Compute)
}
