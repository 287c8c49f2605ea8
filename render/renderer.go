// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render defines the differentiable rendering oracle the
// optimizer drives, and a CPU implementation of it based on smoothed
// signed-distance coverage.
package render

import (
	"context"
	"errors"

	"github.com/pathfit/pathfit/pix"
	"github.com/pathfit/pathfit/scene"
)

// Errors reported by renderers.
var (
	// ErrCanvasSize means the scene's canvas dimensions are not positive.
	ErrCanvasSize = errors.New("render: canvas size must be positive")

	// ErrGradShape means the gradient image passed to Backward does not
	// match the rendering's canvas, or is not RGBA.
	ErrGradShape = errors.New("render: gradient image shape mismatch")
)

// Options controls one Render call.
type Options struct {
	// SamplesX and SamplesY are the subpixel sample counts per axis.
	// Values below 1 are treated as 1.
	SamplesX int
	SamplesY int

	// Seed selects the sample sequence for stochastic renderers. The
	// fitting loop passes the iteration index here so consecutive
	// iterations decorrelate their sampling noise. Deterministic
	// renderers such as SoftRenderer ignore it.
	Seed uint64
}

func (o Options) normalized() Options {
	if o.SamplesX < 1 {
		o.SamplesX = 1
	}
	if o.SamplesY < 1 {
		o.SamplesY = 1
	}
	return o
}

// Rendering is the result of one forward pass: the rendered image plus
// the ability to run the matching backward pass.
//
// Backward maps a gradient image (derivative of a scalar loss with
// respect to every output sample, same shape as Image) to derivatives
// with respect to every scene parameter. It must be called before the
// scene is mutated further; the optimizer's step ordering guarantees
// this.
type Rendering interface {
	// Image returns the rendered RGBA image with straight alpha. The
	// caller must not modify it.
	Image() *pix.Image

	// Backward computes scene parameter gradients for the given output
	// gradient image.
	Backward(ctx context.Context, grad *pix.Image) (*scene.Gradients, error)
}

// Renderer rasterizes a scene into an RGBA image in a way that can be
// differentiated with respect to the scene's control points and fills.
//
// Implementations must be deterministic: the same scene and options
// produce bit-identical images and gradients, regardless of how work
// is scheduled internally. The fitting loop depends on this to make
// whole runs reproducible.
//
// Renderers are safe for concurrent Render calls unless documented
// otherwise.
type Renderer interface {
	Render(ctx context.Context, sc *scene.Scene, opts Options) (Rendering, error)
}
