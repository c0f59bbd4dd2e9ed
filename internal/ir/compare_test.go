package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"ints", int64(1), int64(2), -1},
		{"int and float", 2, 1.5, 1},
		{"numeric string", "10", int64(10), 0},
		{"strings", "b", "a", 1},
		{"numeric strings compare as text", "9", "10", 1},
		{"leading zero is not equal", "01", "1", -1},
		{"times", late, early, 1},
		{"time and date string", early, "2024-01-01", 0},
		{"bools", false, true, -1},
		{"nil low", nil, int64(0), -1},
		{"both nil", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareIncomparable(t *testing.T) {
	_, err := Compare(true, "x")
	assert.Error(t, err)
}

func TestCompareStringsIsTransitive(t *testing.T) {
	values := []any{"9", "10", "1a", "01"}
	for _, a := range values {
		for _, b := range values {
			for _, c := range values {
				ab, err := Compare(a, b)
				require.NoError(t, err)
				bc, err := Compare(b, c)
				require.NoError(t, err)
				ac, err := Compare(a, c)
				require.NoError(t, err)
				if ab < 0 && bc < 0 {
					assert.Negative(t, ac, "%v < %v < %v", a, b, c)
				}
			}
		}
	}
}
