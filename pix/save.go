package pix

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/chewxy/math32"
)

// ToNRGBA converts the image to an 8-bit NRGBA frame. Values are
// clamped to [0,1], gamma-corrected with exponent 1/gamma, and scaled
// to 255. Single-channel images are expanded to gray, RGB gets full
// alpha, RGBA keeps its straight alpha (also gamma-corrected only on
// the color channels).
func (m *Image) ToNRGBA(gamma float32) (*image.NRGBA, error) {
	if m.C != 1 && m.C != 3 && m.C != 4 {
		return nil, fmt.Errorf("%w: %d", ErrChannelCount, m.C)
	}
	inv := float32(1)
	if gamma != 0 && gamma != 1 {
		inv = 1 / gamma
	}
	out := image.NewNRGBA(image.Rect(0, 0, m.W, m.H))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			i := m.Offset(x, y)
			var c color.NRGBA
			switch m.C {
			case 1:
				v := sampleByte(m.Pix[i], inv)
				c = color.NRGBA{R: v, G: v, B: v, A: 255}
			case 3:
				c = color.NRGBA{
					R: sampleByte(m.Pix[i], inv),
					G: sampleByte(m.Pix[i+1], inv),
					B: sampleByte(m.Pix[i+2], inv),
					A: 255,
				}
			case 4:
				c = color.NRGBA{
					R: sampleByte(m.Pix[i], inv),
					G: sampleByte(m.Pix[i+1], inv),
					B: sampleByte(m.Pix[i+2], inv),
					A: sampleByte(m.Pix[i+3], 1),
				}
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out, nil
}

// SavePNG writes the image as a PNG file, gamma-correcting on the way
// out (the inverse of the gamma applied by Load).
func (m *Image) SavePNG(path string, gamma float32) error {
	frame, err := m.ToNRGBA(gamma)
	if err != nil {
		return fmt.Errorf("pix: save png: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pix: save png: %w", err)
	}
	if err := png.Encode(f, frame); err != nil {
		f.Close()
		return fmt.Errorf("pix: save png: %w", err)
	}
	return f.Close()
}

// sampleByte maps a [0,1] sample through pow(v, inv) to an 8-bit value.
func sampleByte(v, inv float32) uint8 {
	if math32.IsNaN(v) || v <= 0 {
		return 0
	}
	if inv != 1 {
		v = math32.Pow(v, inv)
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
