package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCubic(t *testing.T, pts []float32) *Path {
	t.Helper()
	p, err := NewClosedCubic(pts)
	require.NoError(t, err)
	return p
}

func TestAppendGrowsArena(t *testing.T) {
	s := NewScene(64, 64)
	counts := []int{2, 1, 3}
	total := 0
	for _, k := range counts {
		shapes := make([]*Path, k)
		groups := make([]*Group, k)
		for i := range shapes {
			shapes[i] = mustCubic(t, make([]float32, 18))
			groups[i] = &Group{Shapes: []int{total + i}, Fill: [4]float32{0.5, 0.5, 0.5, 1}}
		}
		require.NoError(t, s.Append(shapes, groups))
		total += k
		assert.Len(t, s.Shapes, total)
		assert.Len(t, s.Groups, total)
	}

	// Indices stay dense and unique across the whole arena.
	seen := map[int]bool{}
	for _, g := range s.Groups {
		for _, id := range g.Shapes {
			assert.False(t, seen[id], "shape %d referenced twice", id)
			seen[id] = true
			assert.Less(t, id, len(s.Shapes))
		}
	}
	assert.Len(t, seen, total)
}

func TestAppendRejectsBadIndices(t *testing.T) {
	s := NewScene(8, 8)
	sh := mustCubic(t, make([]float32, 18))

	err := s.Append([]*Path{sh}, []*Group{{Shapes: []int{1}}})
	require.ErrorIs(t, err, ErrShapeIndex)

	err = s.Append([]*Path{sh}, []*Group{{Shapes: []int{-1}}})
	require.ErrorIs(t, err, ErrShapeIndex)

	// A group may reference a shape appended in the same call.
	err = s.Append([]*Path{sh}, []*Group{{Shapes: []int{0}}})
	require.NoError(t, err)

	// And later appends may not disturb earlier ones.
	sh2 := mustCubic(t, make([]float32, 18))
	err = s.Append([]*Path{sh2}, []*Group{{Shapes: []int{1}}})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, s.Groups[0].Shapes)
}

func TestSceneClone(t *testing.T) {
	s := NewScene(10, 20)
	sh := mustCubic(t, make([]float32, 18))
	require.NoError(t, s.Append([]*Path{sh}, []*Group{{Shapes: []int{0}, Fill: [4]float32{1, 0, 0, 1}}}))

	cp := s.Clone()
	cp.Shapes[0].SetPt(0, 5, 5)
	cp.Groups[0].Fill[1] = 0.7

	x, y := s.Shapes[0].Pt(0)
	assert.Equal(t, float32(0), x)
	assert.Equal(t, float32(0), y)
	assert.Equal(t, float32(0), s.Groups[0].Fill[1])
	assert.Equal(t, s.W, cp.W)
	assert.Equal(t, s.H, cp.H)
}

func TestGradients(t *testing.T) {
	s := NewScene(4, 4)
	require.NoError(t, s.Append(
		[]*Path{mustCubic(t, make([]float32, 18)), mustCubic(t, make([]float32, 36))},
		[]*Group{{Shapes: []int{0}}, {Shapes: []int{1}}},
	))

	g := NewGradients(s)
	require.Len(t, g.Points, 2)
	assert.Len(t, g.Points[0], 18)
	assert.Len(t, g.Points[1], 36)
	require.Len(t, g.Fills, 2)

	o := NewGradients(s)
	o.Points[0][3] = 2
	o.Fills[1][2] = -1

	g.Accumulate(o)
	g.Accumulate(o)
	assert.Equal(t, float32(4), g.Points[0][3])
	assert.Equal(t, float32(-2), g.Fills[1][2])

	g.Zero()
	assert.Equal(t, float32(0), g.Points[0][3])
	assert.Equal(t, [4]float32{}, g.Fills[1])
}
