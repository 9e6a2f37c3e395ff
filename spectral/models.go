package spectral

import "errors"

// Point is a single absorbance sample at a wavelength in nanometres.
type Point struct {
	Wavelength float64 `json:"wavelength"`
	Absorbance float64 `json:"absorbance"`
}

// Curve is an ordered absorbance-vs-wavelength sequence. Wavelengths are
// strictly increasing and unique.
type Curve []Point

// Peak describes a local maximum of a curve. Width is the approximate
// full width at half maximum in nanometres.
type Peak struct {
	Wavelength float64 `json:"wavelength"`
	Intensity  float64 `json:"intensity"`
	Width      float64 `json:"width"`
}

// Features summarises a curve for vectorisation and matching.
type Features struct {
	Peaks              []Peak     `json:"peaks"`
	MeanAbsorbance     float64    `json:"meanAbsorbance"`
	Variance           float64    `json:"variance"`
	DominantWavelength float64    `json:"dominantWavelength"`
	SpectralRange      [2]float64 `json:"spectralRange"`
	PeakCount          int        `json:"peakCount"`
}

var (
	ErrCurveTooShort      = errors.New("curve must contain at least 2 points")
	ErrUnorderedCurve     = errors.New("curve wavelengths must be strictly increasing")
	ErrNegativeAbsorbance = errors.New("curve contains negative absorbance")
)

// Validate checks the curve invariants required by the processing functions.
func (c Curve) Validate() error {
	if len(c) < 2 {
		return ErrCurveTooShort
	}
	for i, p := range c {
		if p.Absorbance < 0 {
			return ErrNegativeAbsorbance
		}
		if i > 0 && p.Wavelength <= c[i-1].Wavelength {
			return ErrUnorderedCurve
		}
	}
	return nil
}

// Range returns the first and last wavelength of the curve.
func (c Curve) Range() [2]float64 {
	if len(c) == 0 {
		return [2]float64{}
	}
	return [2]float64{c[0].Wavelength, c[len(c)-1].Wavelength}
}

// Absorbances copies the absorbance column.
func (c Curve) Absorbances() []float64 {
	values := make([]float64, len(c))
	for i, p := range c {
		values[i] = p.Absorbance
	}
	return values
}

// Clone returns an independent copy of the curve.
func (c Curve) Clone() Curve {
	if c == nil {
		return nil
	}
	out := make(Curve, len(c))
	copy(out, c)
	return out
}
