package matcher

import (
	"math"

	"microplastic-id/ingest"
	"microplastic-id/spectral"
)

// CurveMatch is the best library sample for a measured curve. Confidence and
// Similarity are whole percentages.
type CurveMatch struct {
	Match        string    `json:"match"`
	Type         string    `json:"type"`
	Confidence   float64   `json:"confidence"`
	Similarity   float64   `json:"similarity"`
	MatchedPeaks []float64 `json:"matchedPeaks"`
}

// CompareCurves scores observed against each library sample and keeps the
// sample with the strictly highest confidence. Candidates are compared on
// unrounded values; rounding happens once on the winner. With no sample
// scoring above zero the result is "Unknown".
func CompareCurves(observed spectral.Curve, samples []ingest.LibrarySample, scorer CurveScorer) CurveMatch {
	best := CurveMatch{Match: "Unknown", Type: "Unknown", MatchedPeaks: []float64{}}
	bestConfidence := 0.0
	var bestSimilarity float64

	obs := Observation{Curve: observed}
	for _, sample := range samples {
		score := scorer.Score(obs, Reference{Name: sample.Name, Peaks: sample.Peaks, Curve: sample.Curve})
		if score.Confidence > bestConfidence {
			bestConfidence = score.Confidence
			bestSimilarity = score.Similarity
			best.Match = sample.Name
			best.Type = sample.Type
			best.MatchedPeaks = score.MatchedPeaks
		}
	}

	best.Confidence = math.Round(bestConfidence)
	best.Similarity = math.Round(bestSimilarity)
	return best
}
