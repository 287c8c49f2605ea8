// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package diag

import (
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	stageTextColor = color.NRGBA{B: 255, A: 255}
	runTextColor   = color.NRGBA{R: 255, A: 255}
)

// drawLabel stamps text into the frame's top-left corner. Text wider
// than the frame is clipped.
func drawLabel(dst *image.NRGBA, text string, c color.NRGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 12),
	}
	d.DrawString(text)
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

// palettize quantizes a frame for GIF assembly.
func palettize(src *image.NRGBA) *image.Paletted {
	p := image.NewPaletted(src.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(p, p.Bounds(), src, image.Point{})
	return p
}

// writeGIF encodes frames as a looping animation with a uniform
// per-frame delay in hundredths of a second.
func writeGIF(path string, frames []*image.Paletted, delay int) error {
	out := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}
	for i, fr := range frames {
		out.Image[i] = fr
		out.Delay[i] = delay
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, out); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
