// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"math"

	"github.com/chewxy/math32"
)

// defaultSmoothWidth is the half-width in pixels of the coverage
// transition band around a path boundary. A band of one pixel is wider
// than display anti-aliasing needs, on purpose: the band is where
// geometry gradients live, and a wider band gives the optimizer a
// corridor to pull edges through.
const defaultSmoothWidth = 1.0

// smoothCoverage converts a signed distance to coverage with a Hermite
// smoothstep and also returns the derivative of coverage with respect
// to the signed distance.
//
// sd <= -width => 1 (fully inside), sd >= +width => 0 (fully outside),
// with a smooth transition in between. The derivative is zero outside
// the band, which is what makes coverage differentiable everywhere.
func smoothCoverage(sd, width float32) (cov, dcov float32) {
	if sd >= width {
		return 0, 0
	}
	if sd <= -width {
		return 1, 0
	}
	t := (sd + width) / (2 * width)
	cov = 1 - t*t*(3-2*t)
	dcov = -3 * t * (1 - t) / width
	return cov, dcov
}

// edgeHit identifies the boundary point of a polygon closest to a
// query point, with everything the backward pass needs to distribute a
// distance gradient onto the edge's vertices.
type edgeHit struct {
	dist float32 // unsigned distance to the closest boundary point
	edge int32   // index of the edge's start vertex
	t    float32 // clamped projection parameter along the edge
	nx   float32 // unit vector from the closest point toward the query
	ny   float32
}

// nearestEdge scans all edges of poly and returns the closest hit.
// Reports false for an empty polygon. A degenerate zero-length edge is
// treated as a point. When the query sits exactly on the boundary the
// gradient direction is undefined and left zero.
func nearestEdge(poly *polygon, px, py float32) (edgeHit, bool) {
	n := len(poly.verts)
	if n == 0 {
		return edgeHit{}, false
	}
	best := edgeHit{dist: float32(math.MaxFloat32)}
	for e := 0; e < n; e++ {
		a := &poly.verts[e]
		b := &poly.verts[(e+1)%n]
		abx := b.x - a.x
		aby := b.y - a.y
		apx := px - a.x
		apy := py - a.y
		var t float32
		if den := abx*abx + aby*aby; den > 0 {
			t = (apx*abx + apy*aby) / den
			if t < 0 {
				t = 0
			} else if t > 1 {
				t = 1
			}
		}
		dx := px - (a.x + t*abx)
		dy := py - (a.y + t*aby)
		d := math32.Sqrt(dx*dx + dy*dy)
		if d < best.dist {
			best = edgeHit{dist: d, edge: int32(e), t: t}
			if d > 0 {
				best.nx = dx / d
				best.ny = dy / d
			}
		}
	}
	return best, true
}

// windingAndParity casts a horizontal ray from (px, py) toward +x and
// returns the signed winding number and the crossing parity, serving
// the nonzero and even-odd fill rules from one pass. Upward edges with
// the query strictly left count +1, downward edges with it strictly
// right count -1; each counted edge is one ray crossing.
func windingAndParity(poly *polygon, px, py float32) (winding int, odd bool) {
	n := len(poly.verts)
	cross := 0
	for e := 0; e < n; e++ {
		a := &poly.verts[e]
		b := &poly.verts[(e+1)%n]
		if a.y <= py {
			if b.y > py && isLeft(a, b, px, py) > 0 {
				winding++
				cross++
			}
		} else {
			if b.y <= py && isLeft(a, b, px, py) < 0 {
				winding--
				cross++
			}
		}
	}
	return winding, cross&1 == 1
}

// isLeft is positive when (px, py) lies left of the directed line a->b,
// negative when right, zero on the line.
func isLeft(a, b *vertex, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (px-a.x)*(b.y-a.y)
}
