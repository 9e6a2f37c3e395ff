package matcher

import (
	"fmt"
	"math"
)

// CalibrateConfidence scales a raw confidence by data quality (capped at 1)
// and keeps the result inside [0.1, 0.99].
func CalibrateConfidence(raw, quality float64) float64 {
	return clamp(raw*math.Min(1, quality), 0.1, 0.99)
}

// Explain renders a match as human-readable sentences: a confidence tier, a
// similarity tier and the identification itself.
func Explain(result MatchResult) []string {
	explanations := make([]string, 0, 3)

	switch {
	case result.Confidence > 0.9:
		explanations = append(explanations, "High confidence prediction based on strong spectral match")
	case result.Confidence > 0.7:
		explanations = append(explanations, "Moderate confidence - spectral features align well with reference")
	default:
		explanations = append(explanations, "Low confidence - spectral match is uncertain")
	}

	switch {
	case result.Similarity > 0.8:
		explanations = append(explanations, "Excellent spectral correlation with reference database")
	case result.Similarity > 0.6:
		explanations = append(explanations, "Good spectral correlation with some minor variations")
	default:
		explanations = append(explanations, "Spectral correlation shows significant differences from reference")
	}

	explanations = append(explanations, fmt.Sprintf("Identified as %s with %s colorant", result.Polymer, result.Colorant))
	return explanations
}

// PeakClass labels an absorption peak by visible band.
type PeakClass struct {
	Type       string  `json:"type"`
	Color      string  `json:"color"`
	Confidence float64 `json:"confidence"`
}

// ClassifyPeak assigns a band label from wavelength (nm) and intensity.
// A wavelength on a band edge belongs to the lower band.
func ClassifyPeak(wavelength, intensity float64) PeakClass {
	switch {
	case wavelength >= 400 && wavelength <= 500:
		if intensity > 0.6 {
			return PeakClass{"Strong Blue Absorption", "blue", 0.9}
		}
		return PeakClass{"Weak Blue Absorption", "blue", 0.6}
	case wavelength > 500 && wavelength <= 600:
		if intensity > 0.5 {
			return PeakClass{"Green Region Peak", "green", 0.8}
		}
		return PeakClass{"Mid-Visible Peak", "green", 0.5}
	case wavelength > 600 && wavelength <= 700:
		if intensity > 0.4 {
			return PeakClass{"Red Absorption", "red", 0.85}
		}
		return PeakClass{"Weak Red Signal", "red", 0.4}
	case wavelength > 700 && wavelength <= 800:
		return PeakClass{"Near-IR Peak", "purple", 0.7}
	}
	return PeakClass{"Unclassified Peak", "gray", 0.3}
}

// PeakSignificance grades a peak by its intensity relative to the tallest peak.
func PeakSignificance(relativeIntensity float64) string {
	switch {
	case relativeIntensity > 0.8:
		return "Primary"
	case relativeIntensity > 0.5:
		return "Secondary"
	case relativeIntensity > 0.3:
		return "Minor"
	}
	return "Trace"
}
