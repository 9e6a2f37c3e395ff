package spectral

import (
	"math"
	"math/rand"
)

type bump struct {
	center, amplitude, sigma, halfWindow float64
}

var mockBumps = []bump{
	{center: 500, amplitude: 0.6, sigma: 15, halfWindow: 20},
	{center: 650, amplitude: 0.4, sigma: 12, halfWindow: 20},
	{center: 750, amplitude: 0.3, sigma: 10, halfWindow: 20},
}

// GenerateMock builds a synthetic visible-range spectrum (400-800 nm, 2 nm
// steps) with three Gaussian bands over a noisy baseline, then smooths it.
// A nil rng uses the package-level source.
func GenerateMock(rng *rand.Rand) Curve {
	random := rand.Float64
	if rng != nil {
		random = rng.Float64
	}

	curve := make(Curve, 0, 201)
	for w := 400.0; w <= 800; w += 2 {
		absorbance := 0.1 + random()*0.05
		for _, b := range mockBumps {
			if math.Abs(w-b.center) <= b.halfWindow {
				z := (w - b.center) / b.sigma
				absorbance += b.amplitude * math.Exp(-z*z)
			}
		}
		curve = append(curve, Point{Wavelength: w, Absorbance: math.Max(0, absorbance)})
	}

	return Smooth(curve)
}
