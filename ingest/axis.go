package ingest

import "image"

// Axes reports which plot axes were found in an image.
type Axes struct {
	Wavelength bool `json:"hasWavelengthAxis"`
	Absorbance bool `json:"hasAbsorbanceAxis"`
}

// AxisDetector locates plot axes in a rasterised spectrograph.
type AxisDetector interface {
	Detect(img *image.RGBA) Axes
}

// HeuristicAxisDetector looks for long runs of dark pixels along the bottom
// and left bands of the image. It does not read tick labels.
type HeuristicAxisDetector struct {
	// DarkThreshold is the channel value every RGB component must fall below.
	DarkThreshold uint8
	// BottomBandStart is the fraction of the height where the horizontal axis scan begins.
	BottomBandStart float64
	// LeftBandEnd is the fraction of the width where the vertical axis scan ends.
	LeftBandEnd float64
	// Coverage is the fraction of width or height that must be covered by dark pairs.
	Coverage float64
}

func DefaultAxisDetector() HeuristicAxisDetector {
	return HeuristicAxisDetector{DarkThreshold: 100, BottomBandStart: 0.8, LeftBandEnd: 0.2, Coverage: 0.3}
}

func (d HeuristicAxisDetector) Detect(img *image.RGBA) Axes {
	return Axes{
		Wavelength: d.horizontal(img),
		Absorbance: d.vertical(img),
	}
}

func (d HeuristicAxisDetector) horizontal(img *image.RGBA) bool {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	startY := int(float64(height) * d.BottomBandStart)

	count := 0
	for y := startY; y < height; y++ {
		for x := 0; x < width-1; x++ {
			if d.isDark(img, x, y) && d.isDark(img, x+1, y) {
				count++
			}
		}
	}
	return float64(count) > float64(width)*d.Coverage
}

func (d HeuristicAxisDetector) vertical(img *image.RGBA) bool {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	endX := int(float64(width) * d.LeftBandEnd)

	count := 0
	for x := 0; x < endX; x++ {
		for y := 0; y < height-1; y++ {
			if d.isDark(img, x, y) && d.isDark(img, x, y+1) {
				count++
			}
		}
	}
	return float64(count) > float64(height)*d.Coverage
}

func (d HeuristicAxisDetector) isDark(img *image.RGBA, x, y int) bool {
	r, g, b := rgbAt(img, x, y)
	return r < d.DarkThreshold && g < d.DarkThreshold && b < d.DarkThreshold
}

// rgbAt reads a pixel using coordinates relative to the image origin.
func rgbAt(img *image.RGBA, x, y int) (uint8, uint8, uint8) {
	origin := img.Bounds().Min
	off := img.PixOffset(origin.X+x, origin.Y+y)
	return img.Pix[off], img.Pix[off+1], img.Pix[off+2]
}
