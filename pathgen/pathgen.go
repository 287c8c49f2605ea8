// Package pathgen generates the new shapes each progressive stage adds
// to the scene: randomly grown control-point chains or Bezier circle
// approximations, optionally re-centered onto the highest-error regions
// of the pooled error grid. The generator owns its random source so a
// seeded run reproduces the same shapes bit for bit.
package pathgen

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/pathfit/pathfit/errmap"
	"github.com/pathfit/pathfit/internal/logx"
	"github.com/pathfit/pathfit/scene"
)

// chainJitter bounds the random step between consecutive control
// points of a randomly grown chain, in normalized canvas units. Small
// steps keep fresh shapes locally coherent instead of self-intersecting
// noise.
const chainJitter = 0.05

// Errors reported by the generator.
var (
	// ErrTooManyShapes means a stage requested more new shapes than
	// the pooled error grid has cells to place them in.
	ErrTooManyShapes = errors.New("pathgen: more shapes requested than pooled cells")

	// ErrBadSegments means the per-shape segment count cannot build
	// the requested geometry.
	ErrBadSegments = errors.New("pathgen: invalid segment count")
)

// Generator builds new trainable shapes for one run.
type Generator struct {
	mode     Mode
	segments int
	radius   float32 // fixed circle radius; 0 samples one per shape
	rng      *rand.Rand
}

// New creates a generator. radius only applies to ModeCircle; zero
// means each circle samples its own radius uniformly from [0.01, 0.2).
// The rand.Rand is retained and must not be shared with another
// consumer mid-run, or determinism is lost.
func New(mode Mode, segments int, radius float32, rng *rand.Rand) (*Generator, error) {
	if segments < 1 {
		return nil, fmt.Errorf("%w: %d", ErrBadSegments, segments)
	}
	if mode == ModeCircle && segments < 2 {
		return nil, fmt.Errorf("%w: circle needs at least 2 segments, have %d", ErrBadSegments, segments)
	}
	if mode > ModeCircle {
		return nil, fmt.Errorf("%w: %d", ErrMode, mode)
	}
	return &Generator{mode: mode, segments: segments, radius: radius, rng: rng}, nil
}

// Generate produces k new shapes and their fill groups for a w x h
// canvas. Group shape indices are absolute, starting at base (the
// scene's current shape count).
//
// When em is non-nil its k highest-error pooled cells pick the
// placement: each new shape is translated so its centroid lands on the
// center of one cell, best cell first. A nil em (first stage) leaves
// shapes where their random construction put them. Shapes come back in
// normalized geometry scaled to canvas pixels, with uniformly random
// RGBA fills, ready to be appended and optimized.
func (g *Generator) Generate(k, base, w, h int, em *errmap.Map) ([]*scene.Path, []*scene.Group, error) {
	if k == 0 {
		return nil, nil, nil
	}
	if k < 0 {
		return nil, nil, fmt.Errorf("%w: %d requested", ErrTooManyShapes, k)
	}

	// Placement targets come from the error grid, resolved before any
	// RNG draw so a bad configuration cannot desync the stream.
	var centers []errmap.Cell
	if em != nil {
		if k > em.Cells() {
			return nil, nil, fmt.Errorf("%w: %d requested, grid has %d", ErrTooManyShapes, k, em.Cells())
		}
		var err error
		centers, err = em.TopCells(k)
		if err != nil {
			return nil, nil, err
		}
	}

	shapes := make([]*scene.Path, 0, k)
	groups := make([]*scene.Group, 0, k)
	for i := 0; i < k; i++ {
		var pts []float32
		switch g.mode {
		case ModeRandom:
			pts = g.randomChain()
		case ModeCircle:
			r := g.radius
			if r == 0 {
				r = 0.01 + 0.19*float32(g.rng.Float64())
				logx.Logger().Debug("sampled circle radius", "radius", r)
			}
			cx := float32(g.rng.Float64())
			cy := float32(g.rng.Float64())
			pts = bezierCircle(r, cx, cy, g.segments)
		}

		p, err := scene.NewClosedCubic(pts)
		if err != nil {
			return nil, nil, err
		}
		if centers != nil {
			nx, ny := em.CellCenter(centers[i])
			cx, cy := p.Centroid()
			p.Translate(nx-cx, ny-cy)
		}
		p.ScaleXY(float32(w), float32(h))
		shapes = append(shapes, p)

		groups = append(groups, &scene.Group{
			Shapes: []int{base + i},
			Fill: [4]float32{
				float32(g.rng.Float64()),
				float32(g.rng.Float64()),
				float32(g.rng.Float64()),
				float32(g.rng.Float64()),
			},
		})
	}
	return shapes, groups, nil
}

// randomChain grows a closed cubic chain in normalized space: a random
// start anchor, then per segment two controls and the next anchor, each
// one jitter step from the last. The final segment's end anchor is the
// start, so it is not stored.
func (g *Generator) randomChain() []float32 {
	pts := make([]float32, 0, 6*g.segments)
	x := float32(g.rng.Float64())
	y := float32(g.rng.Float64())
	pts = append(pts, x, y)
	for j := 0; j < g.segments; j++ {
		for p := 0; p < 3; p++ {
			x += chainJitter * (float32(g.rng.Float64()) - 0.5)
			y += chainJitter * (float32(g.rng.Float64()) - 0.5)
			if p < 2 || j < g.segments-1 {
				pts = append(pts, x, y)
			}
		}
	}
	return pts
}
