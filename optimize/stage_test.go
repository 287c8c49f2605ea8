// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package optimize

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathfit/pathfit/pix"
	"github.com/pathfit/pathfit/render"
	"github.com/pathfit/pathfit/scene"
)

func blobPath(t *testing.T, cx, cy, r float32) *scene.Path {
	t.Helper()
	k := r * 0.5523
	p, err := scene.NewClosedCubic([]float32{
		cx + r, cy, cx + r, cy + k, cx + k, cy + r,
		cx, cy + r, cx - k, cy + r, cx - r, cy + k,
		cx - r, cy, cx - r, cy - k, cx - k, cy - r,
		cx, cy - r, cx + k, cy - r, cx + r, cy - k,
	})
	require.NoError(t, err)
	return p
}

func solidTarget(w, h int, r, g, b float32) *pix.Image {
	m := pix.NewImage(w, h, 3)
	for i := 0; i < w*h; i++ {
		m.Pix[3*i+0] = r
		m.Pix[3*i+1] = g
		m.Pix[3*i+2] = b
	}
	return m
}

func singleBlobScene(t *testing.T) *scene.Scene {
	sc := scene.NewScene(16, 16)
	require.NoError(t, sc.Append(
		[]*scene.Path{blobPath(t, 8, 8, 4)},
		[]*scene.Group{{Shapes: []int{0}, Fill: [4]float32{0.9, 0.2, 0.1, 0.6}}},
	))
	return sc
}

func TestStageLossDecreases(t *testing.T) {
	r := render.NewSoft(render.WithWorkers(1))
	defer r.Close()

	sc := singleBlobScene(t)
	st := &Stage{
		Renderer:    r,
		Scene:       sc,
		Target:      solidTarget(16, 16, 0.2, 0.4, 0.6),
		Iters:       40,
		PointLR:     CosineSchedule{Base: 1, Floor: 0.1, Total: 40},
		FillLR:      CosineSchedule{Base: 0.01, Floor: 0.001, Total: 40},
		Samples:     2,
		TrainShapes: []int{0},
		TrainGroups: []int{0},
	}
	losses, err := st.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, losses, 40)
	for i, l := range losses {
		require.False(t, math.IsNaN(l) || math.IsInf(l, 0), "iteration %d", i)
	}
	assert.Less(t, losses[39], losses[0])
}

func TestStageFirstLossMatchesManual(t *testing.T) {
	r := render.NewSoft(render.WithWorkers(1))
	defer r.Close()

	sc := singleBlobScene(t)
	target := solidTarget(16, 16, 0.5, 0.5, 0.5)

	// Render the starting scene separately before the stage mutates it.
	rd, err := r.Render(context.Background(), sc.Clone(), render.Options{SamplesX: 2, SamplesY: 2})
	require.NoError(t, err)
	comp, err := rd.Image().CompositeWhite(nil)
	require.NoError(t, err)
	var want float64
	w := 1.0 / float64(16*16)
	for i := 0; i < 16*16; i++ {
		for c := 0; c < 3; c++ {
			d := float64(comp.Pix[3*i+c] - target.Pix[3*i+c])
			want += w * d * d
		}
	}

	st := &Stage{
		Renderer:    r,
		Scene:       sc,
		Target:      target,
		Iters:       1,
		PointLR:     CosineSchedule{Base: 1, Floor: 0.1, Total: 1},
		FillLR:      CosineSchedule{Base: 0.01, Floor: 0.001, Total: 1},
		Samples:     2,
		TrainShapes: []int{0},
		TrainGroups: []int{0},
	}
	losses, err := st.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, losses, 1)
	assert.InDelta(t, want, losses[0], 1e-9)
}

func TestStageFreezesUntrainedParameters(t *testing.T) {
	r := render.NewSoft(render.WithWorkers(1))
	defer r.Close()

	sc := scene.NewScene(16, 16)
	require.NoError(t, sc.Append(
		[]*scene.Path{blobPath(t, 5, 5, 3), blobPath(t, 11, 11, 3)},
		[]*scene.Group{
			{Shapes: []int{0}, Fill: [4]float32{0.8, 0.1, 0.1, 0.9}},
			{Shapes: []int{1}, Fill: [4]float32{0.1, 0.1, 0.8, 0.9}},
		},
	))
	before := sc.Clone()

	st := &Stage{
		Renderer:    r,
		Scene:       sc,
		Target:      solidTarget(16, 16, 0, 0, 0),
		Iters:       5,
		PointLR:     CosineSchedule{Base: 1, Floor: 0.1, Total: 5},
		FillLR:      CosineSchedule{Base: 0.01, Floor: 0.001, Total: 5},
		Samples:     2,
		TrainShapes: []int{1},
		TrainGroups: []int{1},
	}
	_, err := st.Run(context.Background())
	require.NoError(t, err)

	// Frozen parameters are untouched, trained ones moved.
	require.Equal(t, before.Shapes[0].Points, sc.Shapes[0].Points)
	require.Equal(t, before.Groups[0].Fill, sc.Groups[0].Fill)
	assert.NotEqual(t, before.Shapes[1].Points, sc.Shapes[1].Points)
}

func TestStageClampsFills(t *testing.T) {
	r := render.NewSoft(render.WithWorkers(1))
	defer r.Close()

	sc := singleBlobScene(t)
	sc.Groups[0].Fill = [4]float32{0.999, 0.001, 0.5, 0.999}
	st := &Stage{
		Renderer:    r,
		Scene:       sc,
		Target:      solidTarget(16, 16, 1, 0, 1),
		Iters:       10,
		PointLR:     CosineSchedule{Base: 1, Floor: 0.1, Total: 10},
		FillLR:      CosineSchedule{Base: 0.5, Floor: 0.05, Total: 10},
		Samples:     2,
		TrainShapes: []int{0},
		TrainGroups: []int{0},
	}
	_, err := st.Run(context.Background())
	require.NoError(t, err)
	for c := 0; c < 4; c++ {
		assert.GreaterOrEqual(t, sc.Groups[0].Fill[c], float32(0), "channel %d", c)
		assert.LessOrEqual(t, sc.Groups[0].Fill[c], float32(1), "channel %d", c)
	}
}

func TestStageObserver(t *testing.T) {
	r := render.NewSoft(render.WithWorkers(1))
	defer r.Close()

	var iters []int
	var observed []float64
	st := &Stage{
		Renderer:    r,
		Scene:       singleBlobScene(t),
		Target:      solidTarget(16, 16, 0.5, 0.5, 0.5),
		Iters:       4,
		PointLR:     CosineSchedule{Base: 1, Floor: 0.1, Total: 4},
		FillLR:      CosineSchedule{Base: 0.01, Floor: 0.001, Total: 4},
		Samples:     2,
		TrainShapes: []int{0},
		TrainGroups: []int{0},
		Observer: func(iter int, loss float64, frame *pix.Image) {
			iters = append(iters, iter)
			observed = append(observed, loss)
			require.Equal(t, 3, frame.C)
		},
	}
	losses, err := st.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, iters)
	assert.Equal(t, losses, observed)
}

func TestStageValidation(t *testing.T) {
	r := render.NewSoft(render.WithWorkers(1))
	defer r.Close()

	base := func() *Stage {
		return &Stage{
			Renderer:    r,
			Scene:       singleBlobScene(t),
			Target:      solidTarget(16, 16, 0, 0, 0),
			Iters:       2,
			PointLR:     CosineSchedule{Base: 1, Floor: 0.1, Total: 2},
			FillLR:      CosineSchedule{Base: 0.01, Floor: 0.001, Total: 2},
			Samples:     2,
			TrainShapes: []int{0},
			TrainGroups: []int{0},
		}
	}

	st := base()
	st.Target = nil
	_, err := st.Run(context.Background())
	require.ErrorIs(t, err, ErrCanvasMismatch)

	st = base()
	st.Target = solidTarget(8, 16, 0, 0, 0)
	_, err = st.Run(context.Background())
	require.ErrorIs(t, err, ErrCanvasMismatch)

	st = base()
	st.Weights = make([]float32, 7)
	_, err = st.Run(context.Background())
	require.ErrorIs(t, err, ErrCanvasMismatch)

	st = base()
	st.Iters = 0
	_, err = st.Run(context.Background())
	require.ErrorIs(t, err, ErrBadSchedule)

	st = base()
	st.TrainShapes = nil
	st.TrainGroups = nil
	_, err = st.Run(context.Background())
	require.ErrorIs(t, err, ErrNoParams)
}

func TestStageNonFiniteLoss(t *testing.T) {
	r := render.NewSoft(render.WithWorkers(1))
	defer r.Close()

	target := solidTarget(16, 16, 0, 0, 0)
	target.Pix[10] = float32(math.NaN())

	st := &Stage{
		Renderer:    r,
		Scene:       singleBlobScene(t),
		Target:      target,
		Iters:       3,
		PointLR:     CosineSchedule{Base: 1, Floor: 0.1, Total: 3},
		FillLR:      CosineSchedule{Base: 0.01, Floor: 0.001, Total: 3},
		Samples:     2,
		TrainShapes: []int{0},
		TrainGroups: []int{0},
	}
	losses, err := st.Run(context.Background())
	require.ErrorIs(t, err, ErrLossNotFinite)
	assert.Empty(t, losses)
}

func TestStageContextCancel(t *testing.T) {
	r := render.NewSoft(render.WithWorkers(1))
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := &Stage{
		Renderer:    r,
		Scene:       singleBlobScene(t),
		Target:      solidTarget(16, 16, 0, 0, 0),
		Iters:       100,
		PointLR:     CosineSchedule{Base: 1, Floor: 0.1, Total: 100},
		FillLR:      CosineSchedule{Base: 0.01, Floor: 0.001, Total: 100},
		Samples:     2,
		TrainShapes: []int{0},
		TrainGroups: []int{0},
	}
	losses, err := st.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, losses)
}
