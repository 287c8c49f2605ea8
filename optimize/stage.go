// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pathfit/pathfit/internal/logx"
	"github.com/pathfit/pathfit/pix"
	"github.com/pathfit/pathfit/render"
	"github.com/pathfit/pathfit/scene"
)

// Errors reported by stage validation and execution.
var (
	// ErrCanvasMismatch means the target or weight buffer does not
	// match the scene's canvas.
	ErrCanvasMismatch = errors.New("optimize: buffer does not match canvas")

	// ErrNoParams means the stage has nothing to train.
	ErrNoParams = errors.New("optimize: no trainable parameters")

	// ErrBadSchedule means the iteration count or a learning-rate
	// schedule is unusable.
	ErrBadSchedule = errors.New("optimize: bad schedule")

	// ErrLossNotFinite means the loss degenerated to NaN or infinity.
	// The stage stops immediately so the poisoned parameters are not
	// stepped further.
	ErrLossNotFinite = errors.New("optimize: loss is not finite")
)

// Stage is one optimization stage of a progressive run. Each iteration
// renders the scene, composites it over white, measures the weighted
// squared error against the target, pushes the loss gradient back
// through the oracle, and steps the trainable points and fills with
// Adam under cosine-annealed learning rates.
type Stage struct {
	Renderer render.Renderer
	Scene    *scene.Scene

	// Target is the RGB image being approximated, on the scene canvas.
	Target *pix.Image

	// Weights is the per-pixel loss weighting, row-major, length W*H.
	// Nil means uniform 1/(W*H), which is what the first stage uses
	// before any error map exists.
	Weights []float32

	// Iters is the number of optimization iterations.
	Iters int

	// PointLR and FillLR anneal the two parameter groups separately:
	// geometry moves on a pixel scale while colors move in [0,1].
	PointLR CosineSchedule
	FillLR  CosineSchedule

	// Samples is the per-axis subpixel sample count passed to the
	// renderer.
	Samples int

	// TrainShapes and TrainGroups select which scene shapes' points and
	// which groups' fills are stepped. Everything else stays frozen and
	// only participates through rendering.
	TrainShapes []int
	TrainGroups []int

	// Observer, when set, is called after every iteration with the
	// iteration index, its loss, and the composited RGB frame. The
	// frame buffer is reused across iterations; observers that keep it
	// must copy.
	Observer func(iter int, loss float64, frame *pix.Image)
}

// Run executes the stage and returns the per-iteration losses. The
// scene is mutated in place. A context error stops the run between
// iterations and returns the losses recorded so far.
func (st *Stage) Run(ctx context.Context) ([]float64, error) {
	sc := st.Scene
	if st.Target == nil || st.Target.W != sc.W || st.Target.H != sc.H || st.Target.C != 3 {
		return nil, fmt.Errorf("%w: target must be %dx%dx3", ErrCanvasMismatch, sc.W, sc.H)
	}
	weights := st.Weights
	if weights == nil {
		weights = make([]float32, sc.W*sc.H)
		uniform := float32(1) / float32(sc.W*sc.H)
		for i := range weights {
			weights[i] = uniform
		}
	} else if len(weights) != sc.W*sc.H {
		return nil, fmt.Errorf("%w: %d weights for %dx%d canvas", ErrCanvasMismatch, len(weights), sc.W, sc.H)
	}
	if st.Iters < 1 {
		return nil, fmt.Errorf("%w: %d iterations", ErrBadSchedule, st.Iters)
	}

	pointParams := make([]*Param, 0, len(st.TrainShapes))
	for _, si := range st.TrainShapes {
		pointParams = append(pointParams, NewParam(sc.Shapes[si].Points))
	}
	fillParams := make([]*Param, 0, len(st.TrainGroups))
	for _, gi := range st.TrainGroups {
		fillParams = append(fillParams, NewParam(sc.Groups[gi].Fill[:]))
	}
	if len(pointParams)+len(fillParams) == 0 {
		return nil, ErrNoParams
	}
	points := NewAdam(pointParams, float32(st.PointLR.At(0)))
	fills := NewAdam(fillParams, float32(st.FillLR.At(0)))

	var comp *pix.Image
	gradImg := pix.NewImage(sc.W, sc.H, 4)
	losses := make([]float64, 0, st.Iters)
	log := logx.Logger()

	for t := 0; t < st.Iters; t++ {
		if err := ctx.Err(); err != nil {
			return losses, err
		}

		rd, err := st.Renderer.Render(ctx, sc, render.Options{
			SamplesX: st.Samples,
			SamplesY: st.Samples,
			Seed:     uint64(t),
		})
		if err != nil {
			return losses, err
		}
		img := rd.Image()
		comp, err = img.CompositeWhite(comp)
		if err != nil {
			return losses, err
		}

		// Weighted squared error and its gradient through the white
		// composite: out_c = a*rgb_c + (1-a).
		var loss float64
		for i := 0; i < sc.W*sc.H; i++ {
			w := weights[i]
			a := img.Pix[4*i+3]
			var ga float32
			for c := 0; c < 3; c++ {
				diff := comp.Pix[3*i+c] - st.Target.Pix[3*i+c]
				loss += float64(w) * float64(diff) * float64(diff)
				dOut := 2 * w * diff
				gradImg.Pix[4*i+c] = dOut * a
				ga += dOut * (img.Pix[4*i+c] - 1)
			}
			gradImg.Pix[4*i+3] = ga
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return losses, fmt.Errorf("%w: %v at iteration %d", ErrLossNotFinite, loss, t)
		}

		grads, err := rd.Backward(ctx, gradImg)
		if err != nil {
			return losses, err
		}
		for k, si := range st.TrainShapes {
			copy(pointParams[k].Grad, grads.Points[si])
		}
		for k, gi := range st.TrainGroups {
			g := grads.Fills[gi]
			copy(fillParams[k].Grad, g[:])
		}

		points.SetLR(float32(st.PointLR.At(t)))
		fills.SetLR(float32(st.FillLR.At(t)))
		points.Step()
		fills.Step()
		clampFills(fillParams)

		losses = append(losses, loss)
		log.Debug("stage iteration", "iter", t, "loss", loss)
		if st.Observer != nil {
			st.Observer(t, loss, comp)
		}
	}
	return losses, nil
}

// clampFills keeps trained fill channels in [0,1] after each step.
// Points are deliberately unclamped: geometry may leave the canvas and
// be pulled back by the loss.
func clampFills(params []*Param) {
	for _, p := range params {
		for i, v := range p.Data {
			if v < 0 {
				p.Data[i] = 0
			} else if v > 1 {
				p.Data[i] = 1
			}
		}
	}
}
