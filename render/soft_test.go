// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathfit/pathfit/pix"
	"github.com/pathfit/pathfit/scene"
)

func testScene(t *testing.T, w, h int, shapes []*scene.Path, groups []*scene.Group) *scene.Scene {
	t.Helper()
	sc := scene.NewScene(w, h)
	require.NoError(t, sc.Append(shapes, groups))
	return sc
}

// weightImage fills an RGBA image with a fixed pseudo-pattern in
// [-0.5, 0.5], used as the output gradient of a synthetic linear loss.
func weightImage(w, h int) *pix.Image {
	m := pix.NewImage(w, h, 4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < 4; c++ {
				m.Set(x, y, c, float32((x*31+y*17+c*7)%13)/13-0.5)
			}
		}
	}
	return m
}

func TestSoftRenderFullCover(t *testing.T) {
	r := NewSoft(WithWorkers(1))
	defer r.Close()

	fill := [4]float32{0.2, 0.5, 0.8, 1}
	sc := testScene(t, 8, 8,
		[]*scene.Path{rectPath(t, -2, -2, 10, 10)},
		[]*scene.Group{{Shapes: []int{0}, Fill: fill}},
	)
	rd, err := r.Render(context.Background(), sc, Options{SamplesX: 2, SamplesY: 2})
	require.NoError(t, err)

	img := rd.Image()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			for c := 0; c < 4; c++ {
				assert.InDelta(t, float64(fill[c]), float64(img.At(x, y, c)), 1e-6,
					"pixel (%d,%d) channel %d", x, y, c)
			}
		}
	}
}

func TestSoftRenderEmptyScene(t *testing.T) {
	r := NewSoft(WithWorkers(1))
	defer r.Close()

	rd, err := r.Render(context.Background(), scene.NewScene(6, 4), Options{})
	require.NoError(t, err)
	for _, v := range rd.Image().Pix {
		assert.Zero(t, v)
	}
}

func TestSoftRenderHalfAlpha(t *testing.T) {
	r := NewSoft(WithWorkers(1))
	defer r.Close()

	sc := testScene(t, 6, 6,
		[]*scene.Path{rectPath(t, -2, -2, 8, 8)},
		[]*scene.Group{{Shapes: []int{0}, Fill: [4]float32{0.9, 0.1, 0.4, 0.5}}},
	)
	rd, err := r.Render(context.Background(), sc, Options{SamplesX: 2, SamplesY: 2})
	require.NoError(t, err)

	img := rd.Image()
	// Straight alpha output: rgb keeps the fill color, alpha carries
	// the transparency.
	assert.InDelta(t, 0.9, float64(img.At(3, 3, 0)), 1e-6)
	assert.InDelta(t, 0.1, float64(img.At(3, 3, 1)), 1e-6)
	assert.InDelta(t, 0.4, float64(img.At(3, 3, 2)), 1e-6)
	assert.InDelta(t, 0.5, float64(img.At(3, 3, 3)), 1e-6)
}

func TestSoftRenderPainterOrder(t *testing.T) {
	r := NewSoft(WithWorkers(1))
	defer r.Close()

	sc := testScene(t, 6, 6,
		[]*scene.Path{rectPath(t, -2, -2, 8, 8), rectPath(t, -2, -2, 8, 8)},
		[]*scene.Group{
			{Shapes: []int{0}, Fill: [4]float32{1, 0, 0, 1}},
			{Shapes: []int{1}, Fill: [4]float32{0, 0, 1, 1}},
		},
	)
	rd, err := r.Render(context.Background(), sc, Options{SamplesX: 1, SamplesY: 1})
	require.NoError(t, err)

	// The later group is composited on top.
	assert.InDelta(t, 0, float64(rd.Image().At(3, 3, 0)), 1e-6)
	assert.InDelta(t, 1, float64(rd.Image().At(3, 3, 2)), 1e-6)
}

func TestSoftRenderFillRules(t *testing.T) {
	shapes := func() []*scene.Path {
		return []*scene.Path{rectPath(t, 3, 3, 13, 13), rectPath(t, 6, 6, 10, 10)}
	}
	render := func(evenOdd bool) *pix.Image {
		r := NewSoft(WithWorkers(1))
		defer r.Close()
		sc := testScene(t, 16, 16, shapes(),
			[]*scene.Group{{Shapes: []int{0, 1}, Fill: [4]float32{0, 0, 0, 1}, EvenOdd: evenOdd}},
		)
		rd, err := r.Render(context.Background(), sc, Options{SamplesX: 2, SamplesY: 2})
		require.NoError(t, err)
		return rd.Image()
	}

	nonzero := render(false)
	evenodd := render(true)

	// Both rectangles wind the same way, so the nonzero rule fills the
	// inner region twice over while even-odd cuts a hole.
	assert.InDelta(t, 1, float64(nonzero.At(8, 8, 3)), 1e-6, "nonzero center")
	assert.InDelta(t, 0, float64(evenodd.At(8, 8, 3)), 1e-6, "evenodd center")

	// The ring between the rectangles is filled under both rules.
	assert.InDelta(t, 1, float64(nonzero.At(4, 8, 3)), 1e-6)
	assert.InDelta(t, 1, float64(evenodd.At(4, 8, 3)), 1e-6)

	// Well outside both, nothing.
	assert.InDelta(t, 0, float64(nonzero.At(0, 8, 3)), 1e-6)
	assert.InDelta(t, 0, float64(evenodd.At(0, 8, 3)), 1e-6)
}

func TestSoftRenderDeterministicAcrossWorkers(t *testing.T) {
	shapes := []*scene.Path{
		cubicBlob(t, 7, 6, 4),
		cubicBlob(t, 14, 11, 5),
		rectPath(t, 3, 9, 19, 16),
	}
	groups := []*scene.Group{
		{Shapes: []int{0}, Fill: [4]float32{0.8, 0.2, 0.1, 0.9}},
		{Shapes: []int{1}, Fill: [4]float32{0.1, 0.6, 0.9, 0.5}},
		{Shapes: []int{2}, Fill: [4]float32{0.3, 0.9, 0.2, 0.7}},
	}
	wgt := weightImage(24, 20)

	run := func(workers int) (*pix.Image, *scene.Gradients) {
		r := NewSoft(WithWorkers(workers))
		defer r.Close()
		sc := scene.NewScene(24, 20)
		cl := make([]*scene.Path, len(shapes))
		for i, p := range shapes {
			cl[i] = p.Clone()
		}
		gl := make([]*scene.Group, len(groups))
		for i, g := range groups {
			gl[i] = g.Clone()
		}
		require.NoError(t, sc.Append(cl, gl))
		rd, err := r.Render(context.Background(), sc, Options{SamplesX: 2, SamplesY: 2})
		require.NoError(t, err)
		g, err := rd.Backward(context.Background(), wgt)
		require.NoError(t, err)
		return rd.Image(), g
	}

	img1, g1 := run(1)
	img8, g8 := run(8)
	require.Equal(t, img1.Pix, img8.Pix)
	require.Equal(t, g1, g8)
}

func TestSoftRenderSnapshotInsulation(t *testing.T) {
	r := NewSoft(WithWorkers(1))
	defer r.Close()

	sc := testScene(t, 10, 10,
		[]*scene.Path{cubicBlob(t, 5, 5, 3)},
		[]*scene.Group{{Shapes: []int{0}, Fill: [4]float32{0.7, 0.3, 0.2, 0.8}}},
	)
	rd, err := r.Render(context.Background(), sc, Options{SamplesX: 2, SamplesY: 2})
	require.NoError(t, err)
	wgt := weightImage(10, 10)
	before, err := rd.Backward(context.Background(), wgt)
	require.NoError(t, err)

	// Mutating the scene must not change the rendering's view of it.
	sc.Shapes[0].Translate(2, -1)
	sc.Groups[0].Fill = [4]float32{0, 0, 0, 0}
	after, err := rd.Backward(context.Background(), wgt)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestSoftRenderErrors(t *testing.T) {
	r := NewSoft(WithWorkers(1))
	defer r.Close()

	_, err := r.Render(context.Background(), scene.NewScene(0, 8), Options{})
	require.ErrorIs(t, err, ErrCanvasSize)

	bad := scene.NewScene(8, 8)
	bad.Groups = append(bad.Groups, &scene.Group{Shapes: []int{3}})
	_, err = r.Render(context.Background(), bad, Options{})
	require.ErrorIs(t, err, scene.ErrShapeIndex)

	sc := testScene(t, 8, 8,
		[]*scene.Path{rectPath(t, 1, 1, 7, 7)},
		[]*scene.Group{{Shapes: []int{0}, Fill: [4]float32{1, 1, 1, 1}}},
	)
	rd, err := r.Render(context.Background(), sc, Options{})
	require.NoError(t, err)

	_, err = rd.Backward(context.Background(), pix.NewImage(8, 8, 3))
	require.ErrorIs(t, err, ErrGradShape)
	_, err = rd.Backward(context.Background(), pix.NewImage(4, 8, 4))
	require.ErrorIs(t, err, ErrGradShape)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, sc, Options{})
	require.ErrorIs(t, err, context.Canceled)
	_, err = rd.Backward(ctx, pix.NewImage(8, 8, 4))
	require.ErrorIs(t, err, context.Canceled)
}

func fdScene(t *testing.T) (*scene.Scene, []*scene.Path, []*scene.Group) {
	shapes := []*scene.Path{cubicBlob(t, 6, 6, 3.5), cubicBlob(t, 7.5, 6.5, 2.5)}
	groups := []*scene.Group{
		{Shapes: []int{0}, Fill: [4]float32{0.8, 0.3, 0.4, 0.7}},
		{Shapes: []int{1}, Fill: [4]float32{0.2, 0.6, 0.9, 0.6}},
	}
	return testScene(t, 12, 12, shapes, groups), shapes, groups
}

func lossOf(t *testing.T, r *SoftRenderer, sc *scene.Scene, wgt *pix.Image) float64 {
	t.Helper()
	rd, err := r.Render(context.Background(), sc, Options{SamplesX: 2, SamplesY: 2})
	require.NoError(t, err)
	var sum float64
	for i, v := range rd.Image().Pix {
		sum += float64(wgt.Pix[i]) * float64(v)
	}
	return sum
}

func checkGrad(t *testing.T, label string, analytic, fd float64) {
	t.Helper()
	const floor = 1e-2
	if math.Abs(analytic) < floor && math.Abs(fd) < floor {
		return
	}
	assert.InEpsilon(t, fd, analytic, 0.1, "%s: analytic %v, finite diff %v", label, analytic, fd)
}

// TestSoftBackwardFiniteDiffFills validates fill gradients against
// central finite differences of a linear loss over the output image.
func TestSoftBackwardFiniteDiffFills(t *testing.T) {
	r := NewSoft(WithWorkers(1), WithSmoothWidth(2))
	defer r.Close()

	sc, _, _ := fdScene(t)
	wgt := weightImage(12, 12)
	rd, err := r.Render(context.Background(), sc, Options{SamplesX: 2, SamplesY: 2})
	require.NoError(t, err)
	g, err := rd.Backward(context.Background(), wgt)
	require.NoError(t, err)

	const eps = 1e-3
	for gi := range sc.Groups {
		for c := 0; c < 4; c++ {
			up := sc.Clone()
			up.Groups[gi].Fill[c] += eps
			down := sc.Clone()
			down.Groups[gi].Fill[c] -= eps
			fd := (lossOf(t, r, up, wgt) - lossOf(t, r, down, wgt)) / (2 * eps)
			checkGrad(t, "fill", float64(g.Fills[gi][c]), fd)
		}
	}
}

// TestSoftBackwardFiniteDiffPoints does the same for every control
// point coordinate of both shapes.
func TestSoftBackwardFiniteDiffPoints(t *testing.T) {
	r := NewSoft(WithWorkers(1), WithSmoothWidth(2))
	defer r.Close()

	sc, _, _ := fdScene(t)
	wgt := weightImage(12, 12)
	rd, err := r.Render(context.Background(), sc, Options{SamplesX: 2, SamplesY: 2})
	require.NoError(t, err)
	g, err := rd.Backward(context.Background(), wgt)
	require.NoError(t, err)

	const eps = 0.05
	for si := range sc.Shapes {
		for i := range sc.Shapes[si].Points {
			up := sc.Clone()
			up.Shapes[si].Points[i] += eps
			down := sc.Clone()
			down.Shapes[si].Points[i] -= eps
			fd := (lossOf(t, r, up, wgt) - lossOf(t, r, down, wgt)) / (2 * eps)
			checkGrad(t, "point", float64(g.Points[si][i]), fd)
		}
	}
}
