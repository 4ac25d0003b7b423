// Package imaging prepares captured frames for OCR: downscale, grayscale, contrast.
package imaging

import (
	"bytes"
	"image"
	"image/png"
	"math"

	"github.com/nfnt/resize"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
)

// Options controls the tone-mapping pipeline.
type Options struct {
	Scale     float64 // (0,1]
	Contrast  float64 // gain around mid-gray
	Threshold int     // 1..255 binarises, 0 disables
}

// Process downscales img and returns its tone-mapped grayscale version.
func Process(img image.Image, opts Options) *image.Gray {
	return ToneMap(Downscale(img, opts.Scale), opts.Contrast, opts.Threshold)
}

// Downscale shrinks img by scale with bilinear interpolation.
func Downscale(img image.Image, scale float64) image.Image {
	if scale <= 0 || scale >= 1 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	return resize.Resize(uint(w), uint(h), img, resize.Bilinear)
}

// ToneMap converts to luma, stretches contrast around 128 and optionally binarises.
func ToneMap(img image.Image, contrast float64, threshold int) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	lut := contrastTable(contrast, threshold)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y - b.Min.Y) * out.Stride
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// ITU-R 601 luma on 16-bit channels
			lum := (19595*r + 38470*g + 7471*bl + 1<<15) >> 24
			out.Pix[row+x-b.Min.X] = lut[lum]
		}
	}
	return out
}

// contrastTable precomputes the 256-entry tone curve.
func contrastTable(contrast float64, threshold int) [256]uint8 {
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		s := clamp((float64(v)-128)*contrast + 128)
		if threshold > 0 {
			if int(s) >= threshold {
				s = 255
			} else {
				s = 0
			}
		}
		lut[v] = uint8(math.Round(s))
	}
	return lut
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return v
}

// EncodePNG renders img for the in-memory OCR handoff.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(err, apperrors.OCRInvalidImage, "encode png")
	}
	return buf.Bytes(), nil
}
