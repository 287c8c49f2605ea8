package pix

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	// Raster codecs for target decoding. PNG, JPEG and GIF come from
	// the standard library; BMP, TIFF and WebP from golang.org/x/image.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/chewxy/math32"

	"github.com/pathfit/pathfit/internal/logx"
)

// Load decodes the raster file at path into a normalized RGB target.
// Values are scaled to [0,1] and raised to the given gamma (1 leaves
// them linear in file space, matching how the optimizer compares
// against its renders). An alpha channel in the source is dropped with
// a warning, never an error.
func Load(path string, gamma float32) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pix: open target: %w", err)
	}
	defer f.Close()
	m, err := Decode(f, gamma)
	if err != nil {
		return nil, fmt.Errorf("pix: decode target %s: %w", path, err)
	}
	return m, nil
}

// Decode is Load for an already-open stream.
func Decode(r io.Reader, gamma float32) (*Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	if modelHasAlpha(src.ColorModel()) {
		logx.Logger().Warn("alpha channel dropped from target image", "format", format)
	}

	b := src.Bounds()
	m := NewImage(b.Dx(), b.Dy(), 3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			m.Pix[i] = float32(c.R) / 255
			m.Pix[i+1] = float32(c.G) / 255
			m.Pix[i+2] = float32(c.B) / 255
			i += 3
		}
	}
	if gamma != 1 {
		for i, v := range m.Pix {
			m.Pix[i] = math32.Pow(v, gamma)
		}
	}
	return m, nil
}

// modelHasAlpha reports whether a color model carries an alpha
// channel. Decoders produce NRGBA only for sources that stored one;
// alpha-free truecolor arrives as RGBA or YCbCr.
func modelHasAlpha(cm color.Model) bool {
	switch cm {
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return true
	}
	// Paletted sources are alpha-carrying if any palette entry is.
	if p, ok := cm.(color.Palette); ok {
		for _, e := range p {
			if _, _, _, a := e.RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}
