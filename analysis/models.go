package analysis

import (
	"microplastic-id/ingest"
	"microplastic-id/matcher"
	"microplastic-id/spectral"
)

// PeakInsight annotates a detected peak with its band label and its
// significance relative to the tallest peak.
type PeakInsight struct {
	spectral.Peak
	Class        matcher.PeakClass `json:"class"`
	Significance string            `json:"significance"`
}

// Result is everything produced for one analysed spectrum.
type Result struct {
	ID                   string                `json:"id,omitempty"`
	Source               string                `json:"source"`
	Kind                 string                `json:"kind"`
	Prediction           matcher.MatchResult   `json:"prediction"`
	CalibratedConfidence float64               `json:"calibratedConfidence"`
	Explanation          []string              `json:"explanation"`
	ObservedPeaks        []float64             `json:"observedPeaks"`
	Peaks                []PeakInsight         `json:"peaks"`
	Features             *spectral.Features    `json:"features,omitempty"`
	FeatureVector        []float64             `json:"featureVector,omitempty"`
	Classification       []matcher.Prediction  `json:"classification,omitempty"`
	ExtractionConfidence float64               `json:"extractionConfidence"`
	Curve                spectral.Curve        `json:"curve"`
	Dataset              *ingest.Dataset       `json:"dataset,omitempty"`
	Image                *ingest.ImageAnalysis `json:"image,omitempty"`
	LatencyMs            float64               `json:"latencyMs"`
}

// Upload is one file handed to AnalyzeBatch.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// BatchItem holds either a result or the error for one upload. Batch order
// matches input order.
type BatchItem struct {
	Source string  `json:"source"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
	Code   string  `json:"code,omitempty"`
}

// CurveInput is a spectrum that is already in memory, e.g. from a socket
// client or the live stream.
type CurveInput struct {
	Source string
	Kind   string
	Curve  spectral.Curve
	// ExtractionConfidence of zero is treated as a perfect extraction.
	ExtractionConfidence float64
	Persist              bool
}

// ModelInfo summarises what the service matches against.
type ModelInfo struct {
	CatalogSize    int                         `json:"catalogSize"`
	Materials      []matcher.ReferenceMaterial `json:"materials"`
	LibrarySamples int                         `json:"librarySamples"`
	LibrarySource  string                      `json:"librarySource,omitempty"`
	Classifier     matcher.ModelStats          `json:"classifier"`
	Deterministic  bool                        `json:"deterministic"`
}
