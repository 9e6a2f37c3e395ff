package matcher

// Feature Scaling
//
// Spectral feature vectors mix units: wavelengths sit in the hundreds while
// absorbance statistics sit below one. Cosine distance on raw vectors would
// be decided by the wavelength slots alone, so every dimension is z-scored
// against the prototype set before L2 normalisation.

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FeatureScaler standardises each feature dimension to mean 0 and std 1.
type FeatureScaler struct {
	Mean   []float64 `json:"mean"`
	Stddev []float64 `json:"stddev"`
}

// NewFeatureScaler fits scaling parameters to a set of equally sized vectors.
func NewFeatureScaler(vectors [][]float64) (*FeatureScaler, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no feature vectors provided")
	}

	featureCount := len(vectors[0])
	if featureCount == 0 {
		return nil, errors.New("feature vectors are empty")
	}
	for _, v := range vectors {
		if len(v) != featureCount {
			return nil, errors.New("inconsistent feature dimensions")
		}
	}

	mean := make([]float64, featureCount)
	stddev := make([]float64, featureCount)
	column := make([]float64, len(vectors))
	for i := 0; i < featureCount; i++ {
		for j, v := range vectors {
			column[j] = v[i]
		}
		m, variance := stat.PopMeanVariance(column, nil)
		mean[i] = m
		stddev[i] = math.Sqrt(variance)
		// constant features pass through centred but unscaled
		if stddev[i] < 1e-10 {
			stddev[i] = 1.0
		}
	}

	return &FeatureScaler{Mean: mean, Stddev: stddev}, nil
}

// Transform returns a standardised copy. Vectors of the wrong length are
// returned unchanged.
func (fs *FeatureScaler) Transform(features []float64) []float64 {
	if len(features) != len(fs.Mean) {
		return features
	}

	scaled := make([]float64, len(features))
	floats.SubTo(scaled, features, fs.Mean)
	floats.Div(scaled, fs.Stddev)
	return scaled
}

// TransformAndNormalize applies scaling followed by L2 normalisation.
func (fs *FeatureScaler) TransformAndNormalize(features []float64) []float64 {
	scaled := fs.Transform(features)
	if len(features) == len(fs.Mean) {
		NormaliseVectorInPlace(scaled)
	}
	return scaled
}

// NormaliseVectorInPlace scales vector to unit L2 length. Zero vectors are left alone.
func NormaliseVectorInPlace(vector []float64) {
	norm := floats.Norm(vector, 2)
	if norm == 0 {
		return
	}
	floats.Scale(1/norm, vector)
}
