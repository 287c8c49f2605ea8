// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"fmt"
	"math"

	"github.com/pathfit/pathfit/internal/parallel"
	"github.com/pathfit/pathfit/pix"
	"github.com/pathfit/pathfit/scene"
)

// renderBands is the fixed number of row bands a canvas is split into
// for parallel execution. The partition depends only on the canvas
// height, never on the worker count, so per-band gradient buffers
// always merge in the same order and results stay bit-identical no
// matter how many CPUs run the job.
const renderBands = 16

// SoftRenderer is the CPU rendering oracle. It flattens every path to
// a polygon, turns signed boundary distance into smooth coverage, and
// composites group fills in order with straight-alpha output. Because
// coverage is a smooth function of the control points, the renderer
// can push loss gradients all the way back to them analytically.
//
// The forward pass caches flattened geometry and fills, so a
// Rendering stays valid and consistent even after the optimizer
// mutates the scene.
type SoftRenderer struct {
	steps   int
	width   float32
	workers int
	pool    *parallel.Pool
}

// SoftOption configures a SoftRenderer.
type SoftOption func(*SoftRenderer)

// WithFlattenSteps sets how many polyline samples each Bezier segment
// contributes. More steps track curvature closer at more cost.
func WithFlattenSteps(n int) SoftOption {
	return func(r *SoftRenderer) { r.steps = n }
}

// WithSmoothWidth sets the half-width in pixels of the coverage
// transition band around path boundaries.
func WithSmoothWidth(w float32) SoftOption {
	return func(r *SoftRenderer) { r.width = w }
}

// WithWorkers sets the worker count for row parallelism. Zero or less
// uses one worker per CPU.
func WithWorkers(n int) SoftOption {
	return func(r *SoftRenderer) { r.workers = n }
}

// NewSoft creates a software renderer. Close releases its workers.
func NewSoft(opts ...SoftOption) *SoftRenderer {
	r := &SoftRenderer{steps: defaultFlattenSteps, width: defaultSmoothWidth}
	for _, opt := range opts {
		opt(r)
	}
	if r.steps < 1 {
		r.steps = defaultFlattenSteps
	}
	if r.width <= 0 {
		r.width = defaultSmoothWidth
	}
	r.pool = parallel.NewPool(r.workers)
	return r
}

// Close stops the renderer's worker pool.
func (r *SoftRenderer) Close() { r.pool.Close() }

// Render rasterizes the scene. The returned Rendering holds a
// snapshot of the geometry and fills, so Backward is unaffected by
// later scene mutation.
func (r *SoftRenderer) Render(ctx context.Context, sc *scene.Scene, opts Options) (Rendering, error) {
	if sc.W <= 0 || sc.H <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrCanvasSize, sc.W, sc.H)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	snap, err := buildSnapshot(sc, r.steps)
	if err != nil {
		return nil, err
	}
	img := pix.NewImage(sc.W, sc.H, 4)
	bands := bandCount(sc.H)
	r.pool.Map(bands, func(b int) {
		if ctx.Err() != nil {
			return
		}
		y0, y1 := bandRange(sc.H, bands, b)
		snap.forwardRows(img, opts, r.width, y0, y1)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &softRendering{pool: r.pool, snap: snap, opts: opts, width: r.width, img: img}, nil
}

type softRendering struct {
	pool  *parallel.Pool
	snap  *snapshot
	opts  Options
	width float32
	img   *pix.Image
}

func (rd *softRendering) Image() *pix.Image { return rd.img }

// Backward recomputes per-sample compositing state and walks it in
// reverse, producing loss gradients for every control point and fill.
func (rd *softRendering) Backward(ctx context.Context, grad *pix.Image) (*scene.Gradients, error) {
	if grad == nil || grad.W != rd.snap.w || grad.H != rd.snap.h || grad.C != 4 {
		return nil, ErrGradShape
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bands := bandCount(rd.snap.h)
	parts := make([]*scene.Gradients, bands)
	rd.pool.Map(bands, func(b int) {
		if ctx.Err() != nil {
			return
		}
		part := rd.snap.newGradients()
		y0, y1 := bandRange(rd.snap.h, bands, b)
		rd.snap.backwardRows(rd.img, grad, part, rd.opts, rd.width, y0, y1)
		parts[b] = part
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	total := rd.snap.newGradients()
	for _, part := range parts {
		total.Accumulate(part)
	}
	return total, nil
}

func bandCount(h int) int {
	if h < renderBands {
		return h
	}
	return renderBands
}

func bandRange(h, bands, b int) (y0, y1 int) {
	return b * h / bands, (b + 1) * h / bands
}

// snapGroup is a group resolved against the snapshot: polygon indices
// plus the fill captured at render time.
type snapGroup struct {
	polys   []int32
	fill    [4]float32
	evenOdd bool
}

// snapshot is the render-time capture of a scene: flattened polygons
// index-aligned with the scene's shapes, and resolved groups. Both
// passes read only the snapshot, never the live scene.
type snapshot struct {
	w, h   int
	polys  []polygon
	ptsLen []int
	groups []snapGroup
}

func buildSnapshot(sc *scene.Scene, steps int) (*snapshot, error) {
	s := &snapshot{
		w:      sc.W,
		h:      sc.H,
		polys:  make([]polygon, len(sc.Shapes)),
		ptsLen: make([]int, len(sc.Shapes)),
		groups: make([]snapGroup, len(sc.Groups)),
	}
	for i, p := range sc.Shapes {
		s.polys[i] = flattenPath(p, steps)
		s.ptsLen[i] = len(p.Points)
	}
	for i, g := range sc.Groups {
		sg := snapGroup{fill: g.Fill, evenOdd: g.EvenOdd, polys: make([]int32, len(g.Shapes))}
		for k, id := range g.Shapes {
			if id < 0 || id >= len(sc.Shapes) {
				return nil, fmt.Errorf("%w: group %d references shape %d of %d",
					scene.ErrShapeIndex, i, id, len(sc.Shapes))
			}
			sg.polys[k] = int32(id)
		}
		s.groups[i] = sg
	}
	return s, nil
}

// newGradients allocates a gradient set shaped like the snapshot. The
// layout matches scene.NewGradients for the scene as it was at render
// time.
func (s *snapshot) newGradients() *scene.Gradients {
	g := &scene.Gradients{
		Points: make([][]float32, len(s.ptsLen)),
		Fills:  make([][4]float32, len(s.groups)),
	}
	for i, n := range s.ptsLen {
		g.Points[i] = make([]float32, n)
	}
	return g
}

// coverResult is one coverage query: the coverage value and, when the
// query lands inside the smoothing band, the nearest boundary edge
// with the chain-rule factors needed to differentiate through it.
type coverResult struct {
	cov  float32
	dcov float32 // d cov / d signed distance, zero outside the band
	sign float32 // -1 inside the filled region, +1 outside
	poly int32
	hit  edgeHit
	ok   bool
}

// groupCover evaluates the group's coverage at a sample point. Member
// polygons are merged: windings add, parities toggle, and the signed
// distance uses the closest boundary among all members. Polygons whose
// expanded bounding box excludes the point contribute nothing and are
// skipped identically in both passes.
func (s *snapshot) groupCover(g *snapGroup, px, py, width float32) coverResult {
	res := coverResult{sign: 1}
	winding := 0
	odd := false
	best := edgeHit{dist: float32(math.MaxFloat32)}
	bestPoly := int32(-1)
	for _, pi := range g.polys {
		poly := &s.polys[pi]
		if !poly.influences(px, py, width) {
			continue
		}
		w, o := windingAndParity(poly, px, py)
		winding += w
		odd = odd != o
		if hit, found := nearestEdge(poly, px, py); found && hit.dist < best.dist {
			best = hit
			bestPoly = pi
		}
	}
	if bestPoly < 0 {
		return res
	}
	inside := winding != 0
	if g.evenOdd {
		inside = odd
	}
	sd := best.dist
	if inside {
		sd = -sd
		res.sign = -1
	}
	res.cov, res.dcov = smoothCoverage(sd, width)
	res.poly = bestPoly
	res.hit = best
	res.ok = true
	return res
}

// forwardRows renders rows [y0, y1). Samples composite groups in order
// with premultiplied source-over; the per-pixel average is
// unpremultiplied once at the end.
func (s *snapshot) forwardRows(img *pix.Image, opts Options, width float32, y0, y1 int) {
	nx, ny := opts.SamplesX, opts.SamplesY
	inv := 1 / float32(nx*ny)
	for y := y0; y < y1; y++ {
		for x := 0; x < s.w; x++ {
			var accR, accG, accB, accA float32
			for sy := 0; sy < ny; sy++ {
				py := float32(y) + (float32(sy)+0.5)/float32(ny)
				for sx := 0; sx < nx; sx++ {
					px := float32(x) + (float32(sx)+0.5)/float32(nx)
					var pr, pg, pb, pa float32
					for gi := range s.groups {
						g := &s.groups[gi]
						cov := s.groupCover(g, px, py, width).cov
						if cov <= 0 {
							continue
						}
						a := g.fill[3] * cov
						ia := 1 - a
						pr = g.fill[0]*a + pr*ia
						pg = g.fill[1]*a + pg*ia
						pb = g.fill[2]*a + pb*ia
						pa = a + pa*ia
					}
					accR += pr
					accG += pg
					accB += pb
					accA += pa
				}
			}
			o := img.Offset(x, y)
			alpha := accA * inv
			if alpha > 0 {
				ia := 1 / alpha
				img.Pix[o+0] = accR * inv * ia
				img.Pix[o+1] = accG * inv * ia
				img.Pix[o+2] = accB * inv * ia
			} else {
				img.Pix[o+0] = 0
				img.Pix[o+1] = 0
				img.Pix[o+2] = 0
			}
			img.Pix[o+3] = alpha
		}
	}
}

// backwardRows accumulates parameter gradients for rows [y0, y1) into
// part. For each pixel it splits the output gradient through the
// unpremultiply, shares it equally across samples, recomputes each
// sample's compositing prefix states, and sweeps the group stack in
// reverse.
func (s *snapshot) backwardRows(img, grad *pix.Image, part *scene.Gradients, opts Options, width float32, y0, y1 int) {
	nx, ny := opts.SamplesX, opts.SamplesY
	inv := 1 / float32(nx*ny)
	k := len(s.groups)
	cover := make([]coverResult, k)
	alpha := make([]float32, k)
	preP := make([][3]float32, k)
	preA := make([]float32, k)
	for y := y0; y < y1; y++ {
		for x := 0; x < s.w; x++ {
			gOff := grad.Offset(x, y)
			gr := grad.Pix[gOff+0]
			gg := grad.Pix[gOff+1]
			gb := grad.Pix[gOff+2]
			ga := grad.Pix[gOff+3]
			if gr == 0 && gg == 0 && gb == 0 && ga == 0 {
				continue
			}
			iOff := img.Offset(x, y)
			outA := img.Pix[iOff+3]

			// Output rgb is premultiplied-average divided by alpha, so
			// the incoming gradient splits across both factors.
			var gPa [3]float32
			gAa := ga
			if outA > 0 {
				invA := 1 / outA
				gPa[0] = gr * invA
				gPa[1] = gg * invA
				gPa[2] = gb * invA
				gAa -= (gr*img.Pix[iOff+0] + gg*img.Pix[iOff+1] + gb*img.Pix[iOff+2]) * invA
			}
			gPs := [3]float32{gPa[0] * inv, gPa[1] * inv, gPa[2] * inv}
			gAs := gAa * inv

			for sy := 0; sy < ny; sy++ {
				py := float32(y) + (float32(sy)+0.5)/float32(ny)
				for sx := 0; sx < nx; sx++ {
					px := float32(x) + (float32(sx)+0.5)/float32(nx)

					var pP [3]float32
					var pA float32
					for gi := 0; gi < k; gi++ {
						g := &s.groups[gi]
						cr := s.groupCover(g, px, py, width)
						cover[gi] = cr
						a := g.fill[3] * cr.cov
						alpha[gi] = a
						preP[gi] = pP
						preA[gi] = pA
						ia := 1 - a
						pP[0] = g.fill[0]*a + pP[0]*ia
						pP[1] = g.fill[1]*a + pP[1]*ia
						pP[2] = g.fill[2]*a + pP[2]*ia
						pA = a + pA*ia
					}

					gP := gPs
					gA := gAs
					for gi := k - 1; gi >= 0; gi-- {
						g := &s.groups[gi]
						cr := &cover[gi]
						a := alpha[gi]
						gai := gA * (1 - preA[gi])
						for c := 0; c < 3; c++ {
							part.Fills[gi][c] += gP[c] * a
							gai += gP[c] * (g.fill[c] - preP[gi][c])
						}
						ia := 1 - a
						gP[0] *= ia
						gP[1] *= ia
						gP[2] *= ia
						gA *= ia
						part.Fills[gi][3] += gai * cr.cov
						if cr.dcov == 0 || !cr.ok {
							continue
						}
						gdist := gai * g.fill[3] * cr.dcov * cr.sign
						s.scatterEdge(part, cr.poly, &cr.hit, gdist)
					}
				}
			}
		}
	}
}

// scatterEdge splits a distance gradient between the hit edge's two
// vertices by the projection parameter, then routes each vertex share
// to its source control points through the stored Bernstein weights.
// Distance shrinks when the boundary moves toward the query point,
// hence the negated direction.
func (s *snapshot) scatterEdge(part *scene.Gradients, pi int32, hit *edgeHit, gdist float32) {
	poly := &s.polys[pi]
	n := len(poly.verts)
	a := &poly.verts[hit.edge]
	b := &poly.verts[(int(hit.edge)+1)%n]
	gax := -gdist * (1 - hit.t) * hit.nx
	gay := -gdist * (1 - hit.t) * hit.ny
	gbx := -gdist * hit.t * hit.nx
	gby := -gdist * hit.t * hit.ny
	dst := part.Points[pi]
	for k := 0; k < int(a.n); k++ {
		dst[2*int(a.src[k])] += a.w[k] * gax
		dst[2*int(a.src[k])+1] += a.w[k] * gay
	}
	for k := 0; k < int(b.n); k++ {
		dst[2*int(b.src[k])] += b.w[k] * gbx
		dst[2*int(b.src[k])+1] += b.w[k] * gby
	}
}
