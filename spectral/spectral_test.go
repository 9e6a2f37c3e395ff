package spectral

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaussianCurve(center, apex, baseline, sigma float64) Curve {
	var curve Curve
	for w := 400.0; w <= 600; w += 2 {
		z := (w - center) / sigma
		curve = append(curve, Point{Wavelength: w, Absorbance: baseline + (apex-baseline)*math.Exp(-z*z)})
	}
	return curve
}

func TestSmoothPreservesLengthAndEdges(t *testing.T) {
	t.Parallel()

	curve := Curve{
		{400, 0.9}, {410, 0.1}, {420, 0.2}, {430, 0.3}, {440, 0.2}, {450, 0.1}, {460, 0.7},
	}
	smoothed := Smooth(curve)

	require.Len(t, smoothed, len(curve))
	assert.Equal(t, curve[0], smoothed[0])
	assert.Equal(t, curve[1], smoothed[1])
	assert.Equal(t, curve[len(curve)-1], smoothed[len(curve)-1])
	assert.Equal(t, curve[len(curve)-2], smoothed[len(curve)-2])
	for i := range curve {
		assert.Equal(t, curve[i].Wavelength, smoothed[i].Wavelength)
	}
}

func TestSmoothAveragesInteriorPoint(t *testing.T) {
	t.Parallel()

	curve := Curve{{400, 0.1}, {402, 0.2}, {404, 0.3}, {406, 0.2}, {408, 0.1}}
	smoothed := Smooth(curve)

	assert.InDelta(t, 0.18, smoothed[2].Absorbance, 1e-12)
	assert.Equal(t, 0.3, curve[2].Absorbance, "input must not be modified")
}

func TestSmoothShortCurveUnchanged(t *testing.T) {
	t.Parallel()

	curve := Curve{{400, 0.1}, {402, 0.5}, {404, 0.2}}
	assert.Equal(t, curve, Smooth(curve))
}

func TestSmoothWindowEvenWidthRoundsUp(t *testing.T) {
	t.Parallel()

	curve := Curve{{400, 0.3}, {402, 0.6}, {404, 0.0}, {406, 0.9}}
	smoothed := SmoothWindow(curve, 2)

	assert.InDelta(t, 0.3, smoothed[1].Absorbance, 1e-12)
	assert.InDelta(t, 0.5, smoothed[2].Absorbance, 1e-12)
	assert.Equal(t, curve[0], smoothed[0])
	assert.Equal(t, curve[3], smoothed[3])
}

func TestSmoothWindowBelowThreeIsCopy(t *testing.T) {
	t.Parallel()

	curve := Curve{{400, 0.3}, {402, 0.6}, {404, 0.0}}
	for _, window := range []int{-1, 0, 1} {
		assert.Equal(t, curve, SmoothWindow(curve, window), "window %d", window)
	}
}

func TestFindPeaksSingleGaussian(t *testing.T) {
	t.Parallel()

	curve := gaussianCurve(500, 0.6, 0.1, 15)
	peaks := FindPeaks(curve, 0.2, 20)

	require.Len(t, peaks, 1)
	assert.InDelta(t, 500, peaks[0].Wavelength, 2)
	assert.InDelta(t, 0.6, peaks[0].Intensity, 1e-9)
	assert.InDelta(t, 32, peaks[0].Width, 1e-9)
}

func TestFindPeaksMinimumDistanceKeepsFirst(t *testing.T) {
	t.Parallel()

	curve := Curve{
		{495, 0.1}, {500, 0.5}, {502, 0.3}, {505, 0.6}, {508, 0.1},
	}
	peaks := FindPeaks(curve, 0.2, 10)

	require.Len(t, peaks, 1)
	assert.Equal(t, 500.0, peaks[0].Wavelength)
	assert.Equal(t, 0.5, peaks[0].Intensity)
}

func TestFindPeaksRequiresStrictMaximumAboveThreshold(t *testing.T) {
	t.Parallel()

	plateau := Curve{{400, 0.1}, {402, 0.5}, {404, 0.5}, {406, 0.1}}
	assert.Empty(t, FindPeaks(plateau, 0.2, 10))

	low := Curve{{400, 0.1}, {402, 0.2}, {404, 0.1}}
	assert.Empty(t, FindPeaks(low, 0.2, 10))
	assert.NotNil(t, FindPeaks(nil, 0.2, 10))
}

func TestFindPeaksWidthMissingSideIsZero(t *testing.T) {
	t.Parallel()

	// Left skirt never drops to half height.
	curve := Curve{{400, 0.5}, {410, 0.6}, {420, 0.8}, {430, 0.3}, {440, 0.2}}
	peaks := FindPeaks(curve, 0.2, 10)

	require.Len(t, peaks, 1)
	assert.InDelta(t, 10, peaks[0].Width, 1e-9)
}

func TestSortHelpers(t *testing.T) {
	t.Parallel()

	peaks := []Peak{{Wavelength: 600, Intensity: 0.3}, {Wavelength: 450, Intensity: 0.9}, {Wavelength: 700, Intensity: 0.3}}

	SortByIntensity(peaks)
	assert.Equal(t, []float64{450, 600, 700}, Wavelengths(peaks))

	SortByWavelength(peaks)
	assert.Equal(t, []float64{450, 600, 700}, Wavelengths(peaks))

	byIntensity := []Peak{{Wavelength: 700, Intensity: 0.3}, {Wavelength: 600, Intensity: 0.3}, {Wavelength: 450, Intensity: 0.9}}
	SortByIntensity(byIntensity)
	assert.Equal(t, []float64{450, 700, 600}, Wavelengths(byIntensity))
}

func TestExtractFeatures(t *testing.T) {
	t.Parallel()

	curve := Curve{{400, 0.1}, {420, 0.5}, {440, 0.1}, {460, 0.3}, {480, 0.1}}
	features, err := ExtractFeatures(curve, DefaultFeatureOptions())
	require.NoError(t, err)

	require.Equal(t, 2, features.PeakCount)
	assert.Equal(t, 420.0, features.Peaks[0].Wavelength)
	assert.Equal(t, 460.0, features.Peaks[1].Wavelength)
	assert.Equal(t, 420.0, features.DominantWavelength)
	assert.InDelta(t, 0.22, features.MeanAbsorbance, 1e-12)
	assert.InDelta(t, 0.0256, features.Variance, 1e-12)
	assert.Equal(t, [2]float64{400, 480}, features.SpectralRange)
}

func TestExtractFeaturesRejectsShortCurve(t *testing.T) {
	t.Parallel()

	_, err := ExtractFeatures(Curve{{400, 0.1}}, DefaultFeatureOptions())
	assert.ErrorIs(t, err, ErrCurveTooShort)
}

func TestFeatureVectorShape(t *testing.T) {
	t.Parallel()

	empty := FeatureVector(Features{SpectralRange: [2]float64{400, 800}}, DefaultMaxPeaks)
	require.Len(t, empty, 20)
	assert.Equal(t, 400.0, empty[19])
	for i := 4; i < 19; i++ {
		assert.Zero(t, empty[i])
	}

	many := Features{PeakCount: 6, SpectralRange: [2]float64{200, 300}}
	for i := 0; i < 6; i++ {
		many.Peaks = append(many.Peaks, Peak{Wavelength: float64(500 + i), Intensity: 1, Width: 2})
	}
	assert.Len(t, FeatureVector(many, DefaultMaxPeaks), FeatureVectorLength(DefaultMaxPeaks))
}

func TestFeatureVectorLayout(t *testing.T) {
	t.Parallel()

	f := Features{
		Peaks:              []Peak{{Wavelength: 500, Intensity: 0.6, Width: 30}, {Wavelength: 650, Intensity: 0.4, Width: 24}},
		MeanAbsorbance:     0.2,
		Variance:           0.01,
		DominantWavelength: 500,
		SpectralRange:      [2]float64{400, 800},
		PeakCount:          2,
	}
	vec := FeatureVector(f, 2)

	assert.Equal(t, []float64{0.2, 0.01, 2, 500, 500, 0.6, 30, 650, 0.4, 24, 400}, vec)
}

func TestCurveValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Curve{{400, 0}, {401, 1}}.Validate())
	assert.ErrorIs(t, Curve{{400, 0}}.Validate(), ErrCurveTooShort)
	assert.ErrorIs(t, Curve{{400, 0}, {400, 1}}.Validate(), ErrUnorderedCurve)
	assert.ErrorIs(t, Curve{{400, 0}, {401, -1}}.Validate(), ErrNegativeAbsorbance)
}

func TestGenerateMockHasCharacteristicBands(t *testing.T) {
	t.Parallel()

	curve := GenerateMock(rand.New(rand.NewSource(42)))
	require.Len(t, curve, 201)
	require.NoError(t, curve.Validate())
	assert.Equal(t, [2]float64{400, 800}, curve.Range())

	features, err := ExtractFeatures(curve, DefaultFeatureOptions())
	require.NoError(t, err)
	assert.InDelta(t, 500, features.DominantWavelength, 6)

	found := map[float64]bool{}
	for _, p := range features.Peaks {
		for _, band := range []float64{500, 650, 750} {
			if math.Abs(p.Wavelength-band) <= 6 {
				found[band] = true
			}
		}
	}
	assert.Len(t, found, 3)
}
