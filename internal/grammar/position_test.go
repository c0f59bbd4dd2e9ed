package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionAt(t *testing.T) {
	tests := []struct {
		name   string
		source string
		offset int
		want   Position
	}{
		{"start", "hello", 0, Position{Line: 1, Column: 0, Offset: 0}},
		{"single line", "hello world", 6, Position{Line: 1, Column: 6, Offset: 6}},
		{"second line", "line1\nline2", 8, Position{Line: 2, Column: 2, Offset: 8}},
		{"multi-byte", "é = 1", 3, Position{Line: 1, Column: 2, Offset: 3}},
		{"clamped", "ab", 10, Position{Line: 1, Column: 2, Offset: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PositionAt(tt.source, tt.offset))
		})
	}
}
