package pathfit

import (
	"github.com/pathfit/pathfit/errmap"
	"github.com/pathfit/pathfit/pix"
	"github.com/pathfit/pathfit/render"
)

// Option configures a Fitter during creation.
//
// Example:
//
//	// Default software oracle
//	f, err := pathfit.New(cfg)
//
//	// Custom rendering oracle (dependency injection)
//	f, err := pathfit.New(cfg, pathfit.WithRenderer(myOracle))
type Option func(*fitterOptions)

// fitterOptions holds optional configuration for Fitter creation.
type fitterOptions struct {
	renderer render.Renderer
	hooks    Hooks
}

// Hooks observe a run in progress. All callbacks are optional and run
// synchronously on the fitting goroutine; they must not mutate the
// scene or the error map they are handed.
type Hooks struct {
	// StageStart fires after a stage's shapes have been placed, before
	// optimization. label is the cumulative counts string, e.g. "1,1".
	StageStart func(stage int, label string, added, total int)

	// Iteration fires once per optimizer step with the iteration's loss
	// and the white-composited render. The frame is only valid for the
	// duration of the call; clone it to retain.
	Iteration func(stage, iter int, loss float64, frame *pix.Image)

	// StageDone fires after a stage finishes and the error map has been
	// updated from its final render.
	StageDone func(stage int, rec StageRecord, em *errmap.Map)
}

// WithRenderer sets a custom rendering oracle for the Fitter.
// The Fitter does not close injected renderers; the caller keeps
// ownership.
func WithRenderer(r render.Renderer) Option {
	return func(o *fitterOptions) {
		o.renderer = r
	}
}

// WithHooks registers observer callbacks for the run.
func WithHooks(h Hooks) Option {
	return func(o *fitterOptions) {
		o.hooks = h
	}
}
