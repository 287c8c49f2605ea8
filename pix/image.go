// Package pix provides the float32 image tensor the fitting pipeline
// works in, plus decoding of raster targets and PNG export. Values are
// normalized to [0,1] and stored row-major with interleaved channels.
package pix

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// ErrChannelCount means an operation received an image with an
// unsupported number of channels.
var ErrChannelCount = errors.New("pix: unsupported channel count")

// Image is a dense float32 raster: H rows of W pixels with C
// interleaved channels each. C is 1 (scalar field), 3 (RGB) or 4
// (RGBA, straight alpha).
type Image struct {
	W, H, C int
	Pix     []float32
}

// NewImage allocates a zeroed image.
func NewImage(w, h, c int) *Image {
	return &Image{W: w, H: h, C: c, Pix: make([]float32, w*h*c)}
}

// Offset returns the index of pixel (x, y)'s first channel.
func (m *Image) Offset(x, y int) int { return (y*m.W + x) * m.C }

// At returns channel c of pixel (x, y).
func (m *Image) At(x, y, c int) float32 { return m.Pix[(y*m.W+x)*m.C+c] }

// Set assigns channel c of pixel (x, y).
func (m *Image) Set(x, y, c int, v float32) { m.Pix[(y*m.W+x)*m.C+c] = v }

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	cp := &Image{W: m.W, H: m.H, C: m.C, Pix: make([]float32, len(m.Pix))}
	copy(cp.Pix, m.Pix)
	return cp
}

// Fill sets every sample of every pixel to v.
func (m *Image) Fill(v float32) {
	for i := range m.Pix {
		m.Pix[i] = v
	}
}

// SameSize reports whether o has identical dimensions and channels.
func (m *Image) SameSize(o *Image) bool {
	return m.W == o.W && m.H == o.H && m.C == o.C
}

// CompositeWhite flattens an RGBA image over an opaque white background
// into dst (RGB): out_c = a*rgb_c + (1-a). dst may be nil, in which
// case a new image is allocated.
func (m *Image) CompositeWhite(dst *Image) (*Image, error) {
	if m.C != 4 {
		return nil, fmt.Errorf("%w: composite needs RGBA, have %d", ErrChannelCount, m.C)
	}
	if dst == nil {
		dst = NewImage(m.W, m.H, 3)
	}
	if dst.W != m.W || dst.H != m.H || dst.C != 3 {
		return nil, fmt.Errorf("%w: composite dst %dx%dx%d", ErrChannelCount, dst.W, dst.H, dst.C)
	}
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			si := m.Offset(x, y)
			di := dst.Offset(x, y)
			a := m.Pix[si+3]
			for c := 0; c < 3; c++ {
				dst.Pix[di+c] = a*m.Pix[si+c] + (1 - a)
			}
		}
	}
	return dst, nil
}

// HasNonFinite reports whether any sample is NaN or infinite.
func (m *Image) HasNonFinite() bool {
	for _, v := range m.Pix {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return true
		}
	}
	return false
}
