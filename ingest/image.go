package ingest

// Spectrograph Image Extraction
//
// Axis ranges cannot be read from the image, so they are assumed: a detected
// wavelength axis implies a visible-light plot (400-800 nm), otherwise a wide
// 200-4000 range is used. Absorbance always spans [0,1]. Extracted values are
// therefore approximate.
//
// The curve is traced by sampling evenly spaced columns inside the plot area
// (10-90% of the width, 10-80% of the height) and taking the darkest pixel in
// each column as the plotted line. Extraction cost is bounded by the number of
// sampled columns, not by image width.

import (
	"image"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"io"
	"math"

	_ "golang.org/x/image/bmp" // BMP decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration
	"gonum.org/v1/gonum/stat"

	"microplastic-id/spectral"
)

// ImageOptions holds the extraction thresholds.
type ImageOptions struct {
	Detector AxisDetector

	PlotLeft, PlotRight float64
	PlotTop, PlotBottom float64
	SampleColumns       int

	VisibleRange    [2]float64
	WideRange       [2]float64
	AbsorbanceRange [2]float64

	PeakThresholdRatio float64

	BaseConfidence    float64
	AxisBonus         float64
	SignalBonus       float64
	SignalVarianceMin float64

	// MaxDimension bounds the longer image side; larger images are downsampled
	// before scanning. Zero disables downsampling.
	MaxDimension int
}

func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		Detector:           DefaultAxisDetector(),
		PlotLeft:           0.1,
		PlotRight:          0.9,
		PlotTop:            0.1,
		PlotBottom:         0.8,
		SampleColumns:      100,
		VisibleRange:       [2]float64{400, 800},
		WideRange:          [2]float64{200, 4000},
		AbsorbanceRange:    [2]float64{0, 1},
		PeakThresholdRatio: 0.2,
		BaseConfidence:     0.5,
		AxisBonus:          0.2,
		SignalBonus:        0.1,
		SignalVarianceMin:  0.01,
		MaxDimension:       4096,
	}
}

// EstimatedRange is the assumed data extent of the plot.
type EstimatedRange struct {
	Wavelength [2]float64 `json:"wavelength"`
	Absorbance [2]float64 `json:"absorbance"`
}

type ImageMetadata struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Axes
	EstimatedRange EstimatedRange `json:"estimatedRange"`
}

// ImageAnalysis is the result of tracing a spectrograph image. Confidence
// rates the extraction itself, not any later material match.
type ImageAnalysis struct {
	Source        string          `json:"source"`
	Curve         spectral.Curve  `json:"spectralData"`
	Peaks         []spectral.Peak `json:"peaks"`
	DetectedPeaks []float64       `json:"detectedPeaks"`
	Metadata      ImageMetadata   `json:"imageMetadata"`
	Confidence    float64         `json:"confidence"`
}

// DecodeImage decodes any registered raster format into an RGBA buffer with
// its origin at (0,0).
func DecodeImage(r io.Reader, sourceName string) (*image.RGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, newIngestError(ErrCodeImageDecode, sourceName, "unable to decode image", err)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, newIngestError(ErrCodeImageDecode, sourceName, "image has no pixels", nil)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba, nil
}

// Downsample scales img so its longer side is at most maxDimension.
func Downsample(img *image.RGBA, maxDimension int) *image.RGBA {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	longest := max(width, height)
	if maxDimension <= 0 || longest <= maxDimension {
		return img
	}

	scale := float64(maxDimension) / float64(longest)
	dstW := max(1, int(float64(width)*scale))
	dstH := max(1, int(float64(height)*scale))
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// AnalyzeImage traces the plotted curve in img and detects its peaks.
func AnalyzeImage(img *image.RGBA, sourceName string, opts ImageOptions) (*ImageAnalysis, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, newIngestError(ErrCodeImageDecode, sourceName, "image has no pixels", nil)
	}
	img = Downsample(img, opts.MaxDimension)

	detector := opts.Detector
	if detector == nil {
		detector = DefaultAxisDetector()
	}
	axes := detector.Detect(img)

	wavelengthRange := opts.WideRange
	if axes.Wavelength {
		wavelengthRange = opts.VisibleRange
	}

	meta := ImageMetadata{
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Axes:   axes,
		EstimatedRange: EstimatedRange{
			Wavelength: wavelengthRange,
			Absorbance: opts.AbsorbanceRange,
		},
	}

	curve, ok := traceCurve(img, meta.EstimatedRange, opts)
	if !ok {
		return nil, newIngestError(ErrCodeImageDecode, sourceName, "image too small to contain a plot", nil)
	}

	maxAbsorbance := 0.0
	for _, p := range curve {
		maxAbsorbance = math.Max(maxAbsorbance, p.Absorbance)
	}
	peaks := spectral.FindPeaks(curve, maxAbsorbance*opts.PeakThresholdRatio, 0)
	for i := range peaks {
		peaks[i].Wavelength = math.Round(peaks[i].Wavelength)
	}

	return &ImageAnalysis{
		Source:        sourceName,
		Curve:         curve,
		Peaks:         peaks,
		DetectedPeaks: spectral.Wavelengths(peaks),
		Metadata:      meta,
		Confidence:    extractionConfidence(curve, axes, opts),
	}, nil
}

func traceCurve(img *image.RGBA, ranges EstimatedRange, opts ImageOptions) (spectral.Curve, bool) {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()

	startX := int(math.Floor(float64(width) * opts.PlotLeft))
	endX := int(math.Floor(float64(width) * opts.PlotRight))
	startY := int(math.Floor(float64(height) * opts.PlotTop))
	endY := int(math.Floor(float64(height) * opts.PlotBottom))
	if endX <= startX || endY <= startY || opts.SampleColumns <= 0 {
		return nil, false
	}

	minWave, maxWave := ranges.Wavelength[0], ranges.Wavelength[1]
	minAbs, maxAbs := ranges.Absorbance[0], ranges.Absorbance[1]
	stepX := float64(endX-startX) / float64(opts.SampleColumns)

	curve := make(spectral.Curve, 0, opts.SampleColumns)
	lastX := -1
	for i := 0; i < opts.SampleColumns; i++ {
		x := int(math.Floor(float64(startX) + float64(i)*stepX))
		// narrow plots map several samples onto one column
		if x == lastX {
			continue
		}
		lastX = x

		bestY := startY
		bestIntensity := 255.0
		for y := startY; y < endY; y++ {
			r, g, b := rgbAt(img, x, y)
			intensity := (float64(r) + float64(g) + float64(b)) / 3
			if intensity < bestIntensity {
				bestIntensity = intensity
				bestY = y
			}
		}

		wavelength := minWave + float64(x-startX)/float64(endX-startX)*(maxWave-minWave)
		absorbance := maxAbs - float64(bestY-startY)/float64(endY-startY)*(maxAbs-minAbs)
		curve = append(curve, spectral.Point{Wavelength: wavelength, Absorbance: math.Max(0, absorbance)})
	}

	return curve, true
}

func extractionConfidence(curve spectral.Curve, axes Axes, opts ImageOptions) float64 {
	confidence := opts.BaseConfidence
	if axes.Wavelength {
		confidence += opts.AxisBonus
	}
	if axes.Absorbance {
		confidence += opts.AxisBonus
	}
	if len(curve) > 0 {
		_, variance := stat.PopMeanVariance(curve.Absorbances(), nil)
		if variance > opts.SignalVarianceMin {
			confidence += opts.SignalBonus
		}
	}
	return math.Min(1, math.Max(0, confidence))
}
