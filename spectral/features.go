package spectral

import (
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultFeaturePeakThreshold = 0.2
	DefaultFeaturePeakDistance  = 20.0
	DefaultMaxPeaks             = 5
)

// FeatureOptions controls peak finding during feature extraction.
type FeatureOptions struct {
	PeakThreshold  float64
	PeakDistanceNm float64
}

// DefaultFeatureOptions mirrors the thresholds used for general feature extraction.
func DefaultFeatureOptions() FeatureOptions {
	return FeatureOptions{
		PeakThreshold:  DefaultFeaturePeakThreshold,
		PeakDistanceNm: DefaultFeaturePeakDistance,
	}
}

// ExtractFeatures computes the peak list and summary statistics of a curve.
// Peaks are ordered by descending intensity.
func ExtractFeatures(curve Curve, opts FeatureOptions) (Features, error) {
	if len(curve) < 2 {
		return Features{}, ErrCurveTooShort
	}

	peaks := FindPeaks(curve, opts.PeakThreshold, opts.PeakDistanceNm)
	SortByIntensity(peaks)

	mean, variance := stat.PopMeanVariance(curve.Absorbances(), nil)

	dominant := 0.0
	if len(peaks) > 0 {
		dominant = peaks[0].Wavelength
	}

	return Features{
		Peaks:              peaks,
		MeanAbsorbance:     mean,
		Variance:           variance,
		DominantWavelength: dominant,
		SpectralRange:      curve.Range(),
		PeakCount:          len(peaks),
	}, nil
}

// FeatureVectorLength is the size of the vector produced for maxPeaks peaks.
func FeatureVectorLength(maxPeaks int) int {
	return 4 + 3*maxPeaks + 1
}

// FeatureVector flattens features into a fixed-length vector:
// mean, variance, peak count, dominant wavelength, then wavelength/intensity/width
// for the top maxPeaks peaks (zero padded) and finally the spectral range span.
func FeatureVector(f Features, maxPeaks int) []float64 {
	if maxPeaks < 0 {
		maxPeaks = 0
	}
	vec := make([]float64, 0, FeatureVectorLength(maxPeaks))
	vec = append(vec, f.MeanAbsorbance, f.Variance, float64(f.PeakCount), f.DominantWavelength)

	for i := 0; i < maxPeaks; i++ {
		if i < len(f.Peaks) {
			p := f.Peaks[i]
			vec = append(vec, p.Wavelength, p.Intensity, p.Width)
			continue
		}
		vec = append(vec, 0, 0, 0)
	}

	vec = append(vec, f.SpectralRange[1]-f.SpectralRange[0])
	return vec
}
