package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPointCmp(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want int
	}{
		{"equal", NewPoint(1, 2), NewPoint(1, 2), 0},
		{"earlier row", NewPoint(0, 9), NewPoint(1, 0), -1},
		{"later row", NewPoint(2, 0), NewPoint(1, 9), 1},
		{"same row earlier column", NewPoint(1, 1), NewPoint(1, 2), -1},
		{"same row later column", NewPoint(1, 3), NewPoint(1, 2), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Cmp(tt.b))
		})
	}
}

func TestPointAddSub(t *testing.T) {
	// Single-line extents add columns, multi-line extents reset them.
	require.Equal(t, NewPoint(1, 7), NewPoint(1, 3).Add(NewPoint(0, 4)))
	require.Equal(t, NewPoint(3, 4), NewPoint(1, 3).Add(NewPoint(2, 4)))

	require.Equal(t, NewPoint(0, 4), NewPoint(1, 7).Sub(NewPoint(1, 3)))
	require.Equal(t, NewPoint(2, 4), NewPoint(3, 4).Sub(NewPoint(1, 3)))
}

func TestPointAddSubRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := Point{
			Row:    uint32(rapid.IntRange(0, 100).Draw(t, "baseRow")),
			Column: uint32(rapid.IntRange(0, 100).Draw(t, "baseCol")),
		}
		extent := Point{
			Row:    uint32(rapid.IntRange(0, 100).Draw(t, "extRow")),
			Column: uint32(rapid.IntRange(0, 100).Draw(t, "extCol")),
		}
		sum := base.Add(extent)
		require.Equal(t, extent, sum.Sub(base),
			"adding an extent then subtracting the base must return the extent")
	})
}

func TestMinMax(t *testing.T) {
	a, b := NewPoint(1, 5), NewPoint(2, 0)
	assert.Equal(t, a, Min(a, b))
	assert.Equal(t, b, Max(a, b))
	assert.Equal(t, a, Min(a, a))
}
