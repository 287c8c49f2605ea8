// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package diag

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/transform"
)

// Heatmap ramp endpoints, a white-to-dark-red gradient. Low residual
// renders near white, the worst region saturates to dark red.
var (
	heatLow  = [3]float64{255, 245, 240}
	heatHigh = [3]float64{103, 0, 13}
)

// writeHeatmap renders a w x h row-major scalar field as a heatmap PNG.
// The field is passed through a softmax so relative differences stand
// out, then min-max scaled before mapping onto the ramp. When the
// output size differs the image is nearest-resized, which keeps pooled
// grids blocky instead of smearing them.
func writeHeatmap(path string, vals []float32, w, h, outW, outH int) error {
	if len(vals) != w*h {
		return fmt.Errorf("diag: heatmap field is %d values, want %dx%d", len(vals), w, h)
	}
	probs := softmax(vals)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range probs {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	scale := 0.0
	if hi > lo {
		scale = 1 / (hi - lo)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, p := range probs {
		t := (p - lo) * scale
		o := i * 4
		for c := 0; c < 3; c++ {
			img.Pix[o+c] = uint8(heatLow[c] + t*(heatHigh[c]-heatLow[c]) + 0.5)
		}
		img.Pix[o+3] = 255
	}

	var out image.Image = img
	if outW != w || outH != h {
		out = transform.Resize(img, outW, outH, transform.NearestNeighbor)
	}
	return writePNG(path, out)
}

// softmax over the flattened field, with float64 accumulation for
// stability on large canvases.
func softmax(vals []float32) []float64 {
	maxV := math.Inf(-1)
	for _, v := range vals {
		maxV = math.Max(maxV, float64(v))
	}
	out := make([]float64, len(vals))
	var sum float64
	for i, v := range vals {
		e := math.Exp(float64(v) - maxV)
		out[i] = e
		sum += e
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}
