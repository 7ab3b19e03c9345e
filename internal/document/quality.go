package document

import (
	"image"

	"github.com/disintegration/imaging"
)

// Quality thresholds for the advisory checks
const (
	MinLuminance   = 80.0
	MaxLuminance   = 180.0
	MinShortSidePx = 300
)

// Warning messages surfaced to the caller
const (
	WarningTooDark       = "Image appears too dark - try better lighting"
	WarningOverexposed   = "Image appears overexposed - reduce lighting or avoid glare"
	WarningLowResolution = "Image resolution is low - try taking a closer photo"
)

// QualityReport describes brightness and resolution problems found in an image.
// Warnings are advisory and never stop extraction.
type QualityReport struct {
	MeanLuminance float64
	ShortSide     int
	Warnings      []string
}

// OK reports whether no warnings were raised
func (q QualityReport) OK() bool {
	return len(q.Warnings) == 0
}

// Validate measures mean luminance, taken as the average of (r+g+b)/3 over all pixels,
// and the shorter image side.
func Validate(img image.Image) QualityReport {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()

	var sum float64
	pixels := b.Dx() * b.Dy()
	for y := 0; y < b.Dy(); y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+b.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			sum += (float64(row[i]) + float64(row[i+1]) + float64(row[i+2])) / 3
		}
	}

	report := QualityReport{
		ShortSide: min(b.Dx(), b.Dy()),
	}
	if pixels > 0 {
		report.MeanLuminance = sum / float64(pixels)
	}

	if report.MeanLuminance < MinLuminance {
		report.Warnings = append(report.Warnings, WarningTooDark)
	} else if report.MeanLuminance > MaxLuminance {
		report.Warnings = append(report.Warnings, WarningOverexposed)
	}
	if report.ShortSide < MinShortSidePx {
		report.Warnings = append(report.Warnings, WarningLowResolution)
	}

	return report
}
