// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"math"

	"github.com/pathfit/pathfit/scene"
)

// defaultFlattenSteps is the number of polyline samples taken per
// Bezier segment. Eight samples keep a unit-scale cubic within a small
// fraction of a pixel of the true curve at the canvas sizes this
// system targets.
const defaultFlattenSteps = 8

// vertex is one polyline sample of a flattened path. Besides its
// position it records which control points produced it and with what
// Bernstein weights, so the backward pass can route position gradients
// back to the control points with a single weighted scatter.
type vertex struct {
	x, y float32
	src  [4]int32
	w    [4]float32
	n    int8
}

// polygon is a flattened closed path with its bounding box. Vertices
// are stored in path order; the edge after the last vertex wraps to
// the first.
type polygon struct {
	verts                  []vertex
	minX, minY, maxX, maxY float32
}

// bernstein returns the Bernstein basis weights at t for a segment
// with the given interior control count: 2 weights for a line, 3 for a
// quadratic, 4 for a cubic.
func bernstein(arity int, t float32) [4]float32 {
	s := 1 - t
	switch arity {
	case 0:
		return [4]float32{s, t}
	case 1:
		return [4]float32{s * s, 2 * s * t, t * t}
	default:
		return [4]float32{s * s * s, 3 * s * s * t, 3 * s * t * t, t * t * t}
	}
}

func makeVertex(p *scene.Path, idx []int, t float32) vertex {
	arity := len(idx) - 2
	w := bernstein(arity, t)
	v := vertex{n: int8(len(idx))}
	for k, pi := range idx {
		x, y := p.Pt(pi)
		v.x += w[k] * x
		v.y += w[k] * y
		v.src[k] = int32(pi)
		v.w[k] = w[k]
	}
	return v
}

// flattenPath samples every segment of p at steps evenly spaced
// parameters in [0,1). For a closed path each segment's endpoint is
// the next segment's start, so the samples form a closed polygon with
// no duplicate vertices. Open paths get one extra vertex for the final
// anchor and are closed implicitly by the wrap edge, which is the
// usual fill semantics for unclosed subpaths.
func flattenPath(p *scene.Path, steps int) polygon {
	if steps < 1 {
		steps = 1
	}
	poly := polygon{verts: make([]vertex, 0, p.Segments()*steps+1)}
	for _, idx := range p.AllSegments() {
		for i := 0; i < steps; i++ {
			t := float32(i) / float32(steps)
			poly.verts = append(poly.verts, makeVertex(p, idx, t))
		}
	}
	if !p.Closed && p.Segments() > 0 {
		idx := p.SegmentIndices(p.Segments() - 1)
		poly.verts = append(poly.verts, makeVertex(p, idx, 1))
	}
	poly.computeBounds()
	return poly
}

func (poly *polygon) computeBounds() {
	if len(poly.verts) == 0 {
		return
	}
	poly.minX = float32(math.MaxFloat32)
	poly.minY = float32(math.MaxFloat32)
	poly.maxX = float32(-math.MaxFloat32)
	poly.maxY = float32(-math.MaxFloat32)
	for i := range poly.verts {
		v := &poly.verts[i]
		if v.x < poly.minX {
			poly.minX = v.x
		}
		if v.x > poly.maxX {
			poly.maxX = v.x
		}
		if v.y < poly.minY {
			poly.minY = v.y
		}
		if v.y > poly.maxY {
			poly.maxY = v.y
		}
	}
}

// influences reports whether a point can receive nonzero coverage from
// this polygon given the smoothing width. Points outside the expanded
// bounding box are strictly outside the coverage falloff, so both
// passes can skip the polygon entirely without changing the result.
func (poly *polygon) influences(px, py, width float32) bool {
	if len(poly.verts) == 0 {
		return false
	}
	return px >= poly.minX-width && px <= poly.maxX+width &&
		py >= poly.minY-width && py <= poly.maxY+width
}
