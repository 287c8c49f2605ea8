// Package pathfit approximates raster images with layered vector shapes.
//
// # Overview
//
// pathfit rebuilds a target image as a small set of filled closed cubic
// Bezier paths. It works progressively: each stage adds a batch of
// shapes where the current approximation is worst, then jointly
// optimizes the shapes' control points and fill colors by gradient
// descent through a differentiable rendering oracle. Early stages
// capture the dominant regions of the image, later stages refine
// detail, and the result is an ordered, resolution-independent scene
// that can be written as SVG.
//
// # Quick Start
//
//	import "github.com/pathfit/pathfit"
//
//	cfg := pathfit.DefaultConfig()
//	cfg.Counts = []int{1, 1, 1} // three stages, one shape each
//
//	f, err := pathfit.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	res, err := f.Run(context.Background(), "target.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.RunDir, res.FinalLoss())
//
// Each stage writes its scene as "<counts>.svg" into the run directory,
// so a three-stage run leaves "1.svg", "1,1.svg" and "1,1,1.svg" behind,
// the last one being the full result.
//
// # Architecture
//
// The library is organized into:
//   - scene: shape arena, paint groups, SVG read/write
//   - pathgen: shape initialization, random or circle, error-guided
//   - errmap: pooled residual tracking and softmax loss weights
//   - render: the rendering oracle contract and the built-in
//     differentiable software rasterizer
//   - optimize: Adam, cosine annealing and the per-stage loop
//   - diag: optional run recording (frames, GIFs, loss heatmaps)
//
// The root package ties them together: Config describes a run, Fitter
// executes it.
//
// # Coordinate System
//
// Scenes use raster coordinates: origin at the top-left, X right,
// Y down, one unit per pixel. Shape generation works in normalized
// [0,1) coordinates and scales to the canvas.
//
// # Determinism
//
// A run is a pure function of its configuration, target and renderer.
// The built-in oracle renders bit-identically regardless of worker
// count, so fits reproduce exactly across machines.
package pathfit
