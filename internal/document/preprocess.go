package document

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

// Preprocessing constants: scale screen resolution (72 DPI) up to print resolution (300 DPI),
// then stretch contrast around mid-gray with a small brightness lift.
const (
	TargetScale      = 300.0 / 72.0
	MaxOutputSide    = 6000
	ContrastFactor   = 1.2
	BrightnessOffset = 10.0
)

// Preprocess upscales img and remaps every colour channel, returning PNG bytes for the OCR engine
func Preprocess(img image.Image) ([]byte, error) {
	out := Enhance(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Enhance returns the upscaled, contrast-adjusted image
func Enhance(img image.Image) *image.NRGBA {
	b := img.Bounds()
	scale := ScaleFor(b.Dx(), b.Dy())
	w := int(math.Round(float64(b.Dx()) * scale))
	h := int(math.Round(float64(b.Dy()) * scale))

	var resized *image.NRGBA
	if w == b.Dx() && h == b.Dy() {
		resized = imaging.Clone(img)
	} else {
		resized = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	return imaging.AdjustFunc(resized, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: AdjustChannel(c.R),
			G: AdjustChannel(c.G),
			B: AdjustChannel(c.B),
			A: c.A,
		}
	})
}

// ScaleFor returns the upscale factor for an image of the given size.
// It is TargetScale unless that would push the longest side past MaxOutputSide, and never below 1.
func ScaleFor(width, height int) float64 {
	longest := max(width, height)
	if longest == 0 {
		return 1
	}
	scale := TargetScale
	if float64(longest)*scale > MaxOutputSide {
		scale = float64(MaxOutputSide) / float64(longest)
	}
	return math.Max(1, scale)
}

// AdjustChannel applies clamp((c-128)*1.2 + 128 + 10) to one 8-bit channel
func AdjustChannel(c uint8) uint8 {
	v := (float64(c)-128)*ContrastFactor + 128 + BrightnessOffset
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
