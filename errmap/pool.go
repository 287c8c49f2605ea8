// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package errmap

// adaptiveAvgPool resamples a scalar field from iw x ih to ow x oh by
// adaptive average pooling: output cell o covers input rows/columns
// [floor(o*I/O), ceil((o+1)*I/O)) and takes their mean. With O < I this
// is coarse pooling; with O > I it is area interpolation (each output
// pixel averages the one or two cells its footprint overlaps). The two
// directions share this one kernel so pooling and upsampling stay exact
// inverses of each other's binning arithmetic.
func adaptiveAvgPool(src []float32, iw, ih, ow, oh int) []float32 {
	dst := make([]float32, ow*oh)
	for oy := 0; oy < oh; oy++ {
		y0, y1 := binRange(oy, ih, oh)
		for ox := 0; ox < ow; ox++ {
			x0, x1 := binRange(ox, iw, ow)
			var sum float64
			for y := y0; y < y1; y++ {
				row := y * iw
				for x := x0; x < x1; x++ {
					sum += float64(src[row+x])
				}
			}
			n := (y1 - y0) * (x1 - x0)
			dst[oy*ow+ox] = float32(sum / float64(n))
		}
	}
	return dst
}

// binRange returns the half-open input range covered by output index o.
func binRange(o, in, out int) (lo, hi int) {
	lo = o * in / out
	hi = ((o+1)*in + out - 1) / out
	return lo, hi
}
