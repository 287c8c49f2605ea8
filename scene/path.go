package scene

import (
	"errors"
	"fmt"
	"iter"
)

// Errors reported by path construction and validation.
var (
	// ErrPointCount means the point slice length does not match the
	// segment layout of the path.
	ErrPointCount = errors.New("scene: point count does not match segment layout")

	// ErrSegmentArity means a segment declares an unsupported number of
	// interior control points. Supported arities are 0 (line), 1
	// (quadratic) and 2 (cubic).
	ErrSegmentArity = errors.New("scene: unsupported segment arity")
)

// Path is one optimizable vector shape: an ordered run of 2D control
// points stored as a flat x,y-interleaved slice in canvas pixel space.
//
// Controls holds, per segment, the number of interior control points
// between the segment's two anchors (2 for a cubic Bezier, which is what
// the generators in pathgen produce). For a closed path the final
// segment's end anchor is point 0, so the total point count is
// sum(Controls[j]+1). An open path carries one extra trailing anchor.
//
// Points is mutated in place by the optimizer; everything else is fixed
// at construction.
type Path struct {
	Points      []float32
	Controls    []int
	StrokeWidth float32
	Closed      bool
}

// NewPath creates a path and validates the point layout against the
// segment layout. The points slice is retained, not copied.
func NewPath(points []float32, controls []int, closed bool) (*Path, error) {
	if len(points)%2 != 0 {
		return nil, fmt.Errorf("%w: odd coordinate count %d", ErrPointCount, len(points))
	}
	want := 0
	for j, c := range controls {
		if c < 0 || c > 2 {
			return nil, fmt.Errorf("%w: segment %d has %d control points", ErrSegmentArity, j, c)
		}
		want += c + 1
	}
	if !closed {
		want++
	}
	if got := len(points) / 2; got != want {
		return nil, fmt.Errorf("%w: have %d points, layout needs %d", ErrPointCount, got, want)
	}
	return &Path{
		Points:      points,
		Controls:    controls,
		StrokeWidth: 1,
		Closed:      closed,
	}, nil
}

// NewClosedCubic creates a closed all-cubic path from 3*segments points.
// This is the layout every shape in this system uses.
func NewClosedCubic(points []float32) (*Path, error) {
	if len(points)%6 != 0 || len(points) == 0 {
		return nil, fmt.Errorf("%w: closed cubic path needs a multiple of 3 points, have %d",
			ErrPointCount, len(points)/2)
	}
	controls := make([]int, len(points)/6)
	for j := range controls {
		controls[j] = 2
	}
	return NewPath(points, controls, true)
}

// NumPoints returns the number of 2D points in the path.
func (p *Path) NumPoints() int { return len(p.Points) / 2 }

// Segments returns the number of Bezier segments.
func (p *Path) Segments() int { return len(p.Controls) }

// Pt returns point i.
func (p *Path) Pt(i int) (x, y float32) {
	return p.Points[2*i], p.Points[2*i+1]
}

// SetPt overwrites point i.
func (p *Path) SetPt(i int, x, y float32) {
	p.Points[2*i] = x
	p.Points[2*i+1] = y
}

// Centroid returns the mean of all control points. The initializer uses
// this to re-center freshly generated shapes onto high-error regions.
func (p *Path) Centroid() (cx, cy float32) {
	n := p.NumPoints()
	if n == 0 {
		return 0, 0
	}
	var sx, sy float64
	for i := 0; i < len(p.Points); i += 2 {
		sx += float64(p.Points[i])
		sy += float64(p.Points[i+1])
	}
	return float32(sx / float64(n)), float32(sy / float64(n))
}

// Translate shifts every point by (dx, dy).
func (p *Path) Translate(dx, dy float32) {
	for i := 0; i < len(p.Points); i += 2 {
		p.Points[i] += dx
		p.Points[i+1] += dy
	}
}

// ScaleXY multiplies x coordinates by sx and y coordinates by sy.
// Generators build geometry in normalized [0,1] space and scale it to
// the canvas with this.
func (p *Path) ScaleXY(sx, sy float32) {
	for i := 0; i < len(p.Points); i += 2 {
		p.Points[i] *= sx
		p.Points[i+1] *= sy
	}
}

// Clone returns a deep copy of the path.
func (p *Path) Clone() *Path {
	cp := &Path{
		Points:      make([]float32, len(p.Points)),
		Controls:    make([]int, len(p.Controls)),
		StrokeWidth: p.StrokeWidth,
		Closed:      p.Closed,
	}
	copy(cp.Points, p.Points)
	copy(cp.Controls, p.Controls)
	return cp
}

// SegmentIndices returns the point indices of segment j in order: start
// anchor, interior controls, end anchor. For the last segment of a
// closed path the end anchor index wraps to 0.
func (p *Path) SegmentIndices(j int) []int {
	start := 0
	for _, c := range p.Controls[:j] {
		start += c + 1
	}
	n := p.Controls[j] + 2
	idx := make([]int, 0, n)
	for k := 0; k < n-1; k++ {
		idx = append(idx, start+k)
	}
	end := start + n - 1
	if p.Closed && j == len(p.Controls)-1 {
		end = 0
	}
	return append(idx, end)
}

// AllSegments iterates over (segment index, point indices) pairs. The
// index slice is freshly allocated per segment and safe to retain.
func (p *Path) AllSegments() iter.Seq2[int, []int] {
	return func(yield func(int, []int) bool) {
		for j := range p.Controls {
			if !yield(j, p.SegmentIndices(j)) {
				return
			}
		}
	}
}
