package matcher

import "microplastic-id/spectral"

// ReferenceMaterial is a known microplastic with its characteristic absorption peaks.
type ReferenceMaterial struct {
	Type            string    `json:"type"`
	Color           string    `json:"color"`
	Polymer         string    `json:"polymer"`
	Colorant        string    `json:"colorant"`
	PeakWavelengths []float64 `json:"peakWavelengths"`
	Characteristics []string  `json:"characteristics,omitempty"`
}

// Reference converts the material into scorer input.
func (m ReferenceMaterial) Reference() Reference {
	return Reference{Name: m.Type, Peaks: m.PeakWavelengths}
}

// Observation is what was extracted from the analysed sample.
type Observation struct {
	Peaks []float64
	Curve spectral.Curve
}

// Reference is the scorer's view of a candidate.
type Reference struct {
	Name  string
	Peaks []float64
	Curve spectral.Curve
}

// Score is a single scorer verdict. Units depend on the scorer.
type Score struct {
	Similarity   float64   `json:"similarity"`
	Confidence   float64   `json:"confidence"`
	MatchedPeaks []float64 `json:"matchedPeaks"`
}

// MatchResult is the best catalog match for an observation. Score is the raw
// similarity; Confidence and Similarity carry jitter and caps.
type MatchResult struct {
	Match           string    `json:"match"`
	Type            string    `json:"type"`
	Color           string    `json:"color"`
	Polymer         string    `json:"polymer"`
	Colorant        string    `json:"colorant"`
	Confidence      float64   `json:"confidence"`
	Similarity      float64   `json:"similarity"`
	Score           float64   `json:"score"`
	MatchedPeaks    []float64 `json:"matchedPeaks"`
	Characteristics []string  `json:"characteristics,omitempty"`
}

// Candidate pairs a catalog entry with its score.
type Candidate struct {
	Material ReferenceMaterial `json:"material"`
	Score    Score             `json:"score"`
}
