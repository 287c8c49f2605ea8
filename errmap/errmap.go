// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package errmap tracks where the current vector approximation still
// misses the target. It maintains the per-pixel L2 residual between the
// latest composited render and the target, a pooled grid of region
// averages, and the per-pixel loss weighting derived from that grid for
// the next optimization stage.
package errmap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chewxy/math32"

	"github.com/pathfit/pathfit/pix"
)

// Errors reported by the tracker.
var (
	// ErrPoolSize means the pooled grid resolution is not positive or
	// exceeds the canvas.
	ErrPoolSize = errors.New("errmap: invalid pool size")

	// ErrCellCount means more top cells were requested than the pooled
	// grid holds.
	ErrCellCount = errors.New("errmap: not enough pooled cells")

	// ErrImageShape means an update received images that do not match
	// the canvas.
	ErrImageShape = errors.New("errmap: image does not match canvas")
)

// Cell is one pooled-grid cell with its averaged residual.
type Cell struct {
	Col, Row int
	Value    float32
}

// Map is the error tracker for one progressive run. Until the first
// Update it carries the uniform first-stage weighting 1/(W*H); after
// every stage Update replaces residual, pooled grid and weight map
// wholesale.
type Map struct {
	w, h, pool int

	residual []float32 // len w*h, sqrt of channel-summed squared diff
	pooled   []float32 // len pool*pool, adaptive means of residual
	weight   []float32 // len w*h, non-negative, sums to 1
	updated  bool
}

// New creates a tracker for a w x h canvas with a pool x pool region
// grid.
func New(w, h, pool int) (*Map, error) {
	if pool < 1 || pool > w || pool > h {
		return nil, fmt.Errorf("%w: %d on %dx%d canvas", ErrPoolSize, pool, w, h)
	}
	m := &Map{
		w:        w,
		h:        h,
		pool:     pool,
		residual: make([]float32, w*h),
		pooled:   make([]float32, pool*pool),
		weight:   make([]float32, w*h),
	}
	uniform := float32(1) / float32(w*h)
	for i := range m.weight {
		m.weight[i] = uniform
	}
	return m, nil
}

// Width returns the canvas width in pixels.
func (m *Map) Width() int { return m.w }

// Height returns the canvas height in pixels.
func (m *Map) Height() int { return m.h }

// PoolSize returns the pooled grid resolution.
func (m *Map) PoolSize() int { return m.pool }

// Cells returns the number of pooled cells.
func (m *Map) Cells() int { return m.pool * m.pool }

// Updated reports whether at least one stage has fed the tracker.
// Before that, Weight is the uniform map and TopCells has no signal.
func (m *Map) Updated() bool { return m.updated }

// Weight returns the per-pixel loss weighting, row-major. The slice is
// owned by the tracker; callers must not modify it.
func (m *Map) Weight() []float32 { return m.weight }

// WeightAt returns the loss weight of pixel (x, y).
func (m *Map) WeightAt(x, y int) float32 { return m.weight[y*m.w+x] }

// Residual returns the per-pixel L2 residual, row-major. Owned by the
// tracker.
func (m *Map) Residual() []float32 { return m.residual }

// Pooled returns the pooled region grid, row-major. Owned by the
// tracker.
func (m *Map) Pooled() []float32 { return m.pooled }

// Update recomputes the tracker from a composited render and the
// target (both RGB on the run's canvas):
//
//  1. residual = sqrt(sum over channels of squared difference),
//  2. pooled   = adaptive average pooling of the residual,
//  3. weight   = softmax over the pooled grid, area-upsampled to the
//     canvas and renormalized to sum to 1.
//
// The weight map is detached: it only ever feeds the next stage's loss
// as a constant. Non-finite residuals propagate into the weights so a
// poisoned stage fails loudly downstream instead of being averaged
// away.
func (m *Map) Update(rendered, target *pix.Image) error {
	if rendered.W != m.w || rendered.H != m.h || rendered.C != 3 {
		return fmt.Errorf("%w: rendered %dx%dx%d, want %dx%dx3",
			ErrImageShape, rendered.W, rendered.H, rendered.C, m.w, m.h)
	}
	if !rendered.SameSize(target) {
		return fmt.Errorf("%w: target %dx%dx%d, want %dx%dx3",
			ErrImageShape, target.W, target.H, target.C, m.w, m.h)
	}

	for i := range m.residual {
		var sum float32
		for c := 0; c < 3; c++ {
			d := rendered.Pix[3*i+c] - target.Pix[3*i+c]
			sum += d * d
		}
		m.residual[i] = math32.Sqrt(sum)
	}

	m.pooled = adaptiveAvgPool(m.residual, m.w, m.h, m.pool, m.pool)

	soft := softmax(m.pooled)
	m.weight = adaptiveAvgPool(soft, m.pool, m.pool, m.w, m.h)
	normalize(m.weight)
	m.updated = true
	return nil
}

// TopCells returns the k pooled cells with the highest averaged
// residual, ordered best first. Ties break toward the lower flat
// row-major index so rankings are reproducible.
func (m *Map) TopCells(k int) ([]Cell, error) {
	if k < 0 || k > m.Cells() {
		return nil, fmt.Errorf("%w: want %d of %d", ErrCellCount, k, m.Cells())
	}
	idx := make([]int, m.Cells())
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if m.pooled[idx[a]] != m.pooled[idx[b]] {
			return m.pooled[idx[a]] > m.pooled[idx[b]]
		}
		return idx[a] < idx[b]
	})
	cells := make([]Cell, k)
	for i := 0; i < k; i++ {
		cells[i] = Cell{
			Col:   idx[i] % m.pool,
			Row:   idx[i] / m.pool,
			Value: m.pooled[idx[i]],
		}
	}
	return cells, nil
}

// CellCenter returns the normalized [0,1] canvas coordinates of a
// cell's center.
func (m *Map) CellCenter(c Cell) (nx, ny float32) {
	p := float32(m.pool)
	return (float32(c.Col) + 0.5) / p, (float32(c.Row) + 0.5) / p
}

// softmax computes a numerically stable softmax with float64
// accumulation, returning float32 probabilities.
func softmax(v []float32) []float32 {
	maxV := float32(math.Inf(-1))
	for _, x := range v {
		if x > maxV {
			maxV = x
		}
	}
	out := make([]float32, len(v))
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x - maxV))
		out[i] = float32(e)
		sum += e
	}
	inv := 1 / sum
	for i := range out {
		out[i] = float32(float64(out[i]) * inv)
	}
	return out
}

// normalize scales v in place to sum to 1.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x)
	}
	inv := 1 / sum
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
