package pathfit

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pathfit/pathfit/errmap"
	"github.com/pathfit/pathfit/internal/logx"
	"github.com/pathfit/pathfit/optimize"
	"github.com/pathfit/pathfit/pathgen"
	"github.com/pathfit/pathfit/pix"
	"github.com/pathfit/pathfit/render"
	"github.com/pathfit/pathfit/scene"
)

// Fitter approximates a raster image with a growing set of filled
// closed cubic paths. Each stage adds a batch of shapes where the
// current approximation is worst, then optimizes through the rendering
// oracle. A Fitter is not safe for concurrent use.
type Fitter struct {
	cfg      Config
	renderer render.Renderer
	owned    *render.SoftRenderer
	hooks    Hooks
}

// New validates cfg and creates a Fitter. Without [WithRenderer] the
// Fitter owns a [render.SoftRenderer]; call [Fitter.Close] to release
// it.
func New(cfg Config, opts ...Option) (*Fitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o fitterOptions
	for _, opt := range opts {
		opt(&o)
	}
	f := &Fitter{cfg: cfg, renderer: o.renderer, hooks: o.hooks}
	if f.renderer == nil {
		f.owned = render.NewSoft()
		f.renderer = f.owned
	}
	return f, nil
}

// Close releases the Fitter's own renderer. Injected renderers are the
// caller's to close.
func (f *Fitter) Close() {
	if f.owned != nil {
		f.owned.Close()
		f.owned = nil
	}
}

// Run loads the target image, creates the run directory and fits the
// scene. The run directory is cfg.RunDir(target); creating it when it
// already exists is fine.
func (f *Fitter) Run(ctx context.Context, target string) (*Result, error) {
	img, err := pix.Load(target, f.cfg.Gamma)
	if err != nil {
		return nil, fmt.Errorf("pathfit: load target: %w", err)
	}
	dir := f.cfg.RunDir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("pathfit: create run dir: %w", err)
	}
	return f.FitImage(ctx, img, dir)
}

// FitImage fits an already decoded RGB target. Stage artifacts (scene
// SVGs and optional renders) are written under dir; an empty dir
// disables persistence entirely. Two runs with the same configuration,
// target and renderer produce identical results.
func (f *Fitter) FitImage(ctx context.Context, target *pix.Image, dir string) (*Result, error) {
	if target == nil || target.C != 3 {
		return nil, fmt.Errorf("%w: target must be an RGB image", optimize.ErrCanvasMismatch)
	}
	w, h := target.W, target.H
	rng := rand.New(rand.NewSource(f.cfg.Seed))
	gen, err := pathgen.New(f.cfg.Init, f.cfg.Segments, f.cfg.CircleRadius, rng)
	if err != nil {
		return nil, err
	}
	em, err := errmap.New(w, h, f.cfg.PoolSize)
	if err != nil {
		return nil, err
	}

	log := logx.Logger()
	sc := scene.NewScene(w, h)
	res := &Result{Scene: sc, RunDir: dir}

	var label string
	for i, count := range f.cfg.Counts {
		stage := i + 1
		if label != "" {
			label += ","
		}
		label += strconv.Itoa(count)

		// Place the stage's shapes. The first stage has no residual to
		// follow yet and scatters freely.
		var guide *errmap.Map
		if em.Updated() {
			guide = em
		}
		baseShapes, baseGroups := len(sc.Shapes), len(sc.Groups)
		paths, groups, err := gen.Generate(count, baseShapes, w, h, guide)
		if err != nil {
			return nil, fmt.Errorf("pathfit: stage %d: %w", stage, err)
		}
		if err := sc.Append(paths, groups); err != nil {
			return nil, fmt.Errorf("pathfit: stage %d: %w", stage, err)
		}
		total := len(sc.Shapes)
		log.Info("stage start", "stage", stage, "added", count, "total", total, "init", f.cfg.Init)
		if f.hooks.StageStart != nil {
			f.hooks.StageStart(stage, label, count, total)
		}

		trainShapes := indexRange(0, total)
		trainGroups := indexRange(0, len(sc.Groups))
		if !f.cfg.Free {
			trainShapes = indexRange(baseShapes, total)
			trainGroups = indexRange(baseGroups, len(sc.Groups))
		}

		if dir != "" && f.cfg.SaveInit {
			if err := sc.SaveSVG(filepath.Join(dir, label+"-init.svg")); err != nil {
				return nil, fmt.Errorf("pathfit: stage %d: %w", stage, err)
			}
		}

		// From the second stage on, pixels where the previous stages
		// did badly weigh more in the loss.
		var weights []float32
		if em.Updated() {
			weights = em.Weight()
		}

		var lastFrame *pix.Image
		st := &optimize.Stage{
			Renderer:    f.renderer,
			Scene:       sc,
			Target:      target,
			Weights:     weights,
			Iters:       f.cfg.Iters,
			PointLR:     optimize.CosineSchedule{Base: f.cfg.PointLR, Floor: f.cfg.PointLRFloor, Total: f.cfg.Iters},
			FillLR:      optimize.CosineSchedule{Base: f.cfg.FillLR, Floor: f.cfg.FillLRFloor, Total: f.cfg.Iters},
			Samples:     f.cfg.Samples,
			TrainShapes: trainShapes,
			TrainGroups: trainGroups,
			Observer: func(t int, loss float64, frame *pix.Image) {
				if t == f.cfg.Iters-1 {
					lastFrame = frame.Clone()
				}
				if f.hooks.Iteration != nil {
					f.hooks.Iteration(stage, t, loss, frame)
				}
			},
		}
		losses, err := st.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("pathfit: stage %d: %w", stage, err)
		}

		// The residual comes from the stage's final render, taken
		// before the last optimizer step. It seeds both the next
		// stage's placement and its loss weighting.
		if err := em.Update(lastFrame, target); err != nil {
			return nil, fmt.Errorf("pathfit: stage %d: %w", stage, err)
		}

		if dir != "" {
			if err := sc.SaveSVG(filepath.Join(dir, label+".svg")); err != nil {
				return nil, fmt.Errorf("pathfit: stage %d: %w", stage, err)
			}
			if f.cfg.SaveImage {
				if err := lastFrame.SavePNG(filepath.Join(dir, label+".png"), f.cfg.Gamma); err != nil {
					return nil, fmt.Errorf("pathfit: stage %d: %w", stage, err)
				}
			}
		}

		rec := StageRecord{
			Stage: stage, Added: count, Total: total, Label: label,
			Init: f.cfg.Init, Free: f.cfg.Free, Iters: f.cfg.Iters,
			Losses: losses,
		}
		res.Stages = append(res.Stages, rec)
		if f.hooks.StageDone != nil {
			f.hooks.StageDone(stage, rec, em)
		}
		log.Info("stage done", "stage", stage, "loss", rec.FinalLoss())
	}

	log.Info("run done", "shapes", res.TotalShapes(), "loss", res.FinalLoss())
	return res, nil
}

// indexRange returns [lo, hi) as a slice, nil when empty.
func indexRange(lo, hi int) []int {
	if lo >= hi {
		return nil
	}
	ix := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		ix = append(ix, i)
	}
	return ix
}
