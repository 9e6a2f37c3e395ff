package matcher

import (
	"math"

	"microplastic-id/spectral"
)

// Scorer rates how well an observation fits one reference.
type Scorer interface {
	Name() string
	Score(obs Observation, ref Reference) Score
}

// PeakScorer compares peak positions only. Each reference peak earns
// 1 - distance/tolerance against its nearest observed peak (never below
// zero) and the earned values are averaged. Scores fall in [0,1].
type PeakScorer struct {
	ToleranceNm float64
}

func DefaultPeakScorer() PeakScorer {
	return PeakScorer{ToleranceNm: 50}
}

func (PeakScorer) Name() string { return "peak" }

func (s PeakScorer) Score(obs Observation, ref Reference) Score {
	result := Score{MatchedPeaks: []float64{}}
	if len(obs.Peaks) == 0 || len(ref.Peaks) == 0 || s.ToleranceNm <= 0 {
		return result
	}

	var total float64
	for _, refPeak := range ref.Peaks {
		best := 0.0
		for _, obsPeak := range obs.Peaks {
			best = math.Max(best, 1-math.Abs(refPeak-obsPeak)/s.ToleranceNm)
		}
		if best > 0 {
			result.MatchedPeaks = append(result.MatchedPeaks, refPeak)
		}
		total += best
	}

	result.Similarity = total / float64(len(ref.Peaks))
	result.Confidence = result.Similarity
	return result
}

// CurveScorer compares dense curves point by point and reports percentages.
//
// Similarity is 100 minus fifty times the mean absolute absorbance difference
// over the first min(len) observed points, pairing each with the nearest
// reference wavelength inside WindowNm. Confidence blends that similarity
// (70%) with the share of reference peaks that have an observed point within
// PeakWindowNm above PeakMinAbsorbance (up to 30 points).
type CurveScorer struct {
	WindowNm          float64
	PeakWindowNm      float64
	PeakMinAbsorbance float64
}

func DefaultCurveScorer() CurveScorer {
	return CurveScorer{WindowNm: 50, PeakWindowNm: 30, PeakMinAbsorbance: 0.3}
}

func (CurveScorer) Name() string { return "curve" }

func (s CurveScorer) Score(obs Observation, ref Reference) Score {
	result := Score{MatchedPeaks: []float64{}}
	minLength := min(len(obs.Curve), len(ref.Curve))
	if minLength == 0 {
		return result
	}

	var diffSum float64
	for i := 0; i < minLength; i++ {
		point := obs.Curve[i]
		closest, distance := nearest(ref.Curve, point.Wavelength)
		if distance < s.WindowNm {
			diffSum += math.Abs(point.Absorbance - ref.Curve[closest].Absorbance)
		}
	}
	result.Similarity = math.Max(0, 100-(diffSum/float64(minLength))*50)

	for _, peak := range ref.Peaks {
		for _, point := range obs.Curve {
			if math.Abs(point.Wavelength-peak) < s.PeakWindowNm && point.Absorbance > s.PeakMinAbsorbance {
				result.MatchedPeaks = append(result.MatchedPeaks, peak)
				break
			}
		}
	}

	peakTerm := 0.0
	if len(ref.Peaks) > 0 {
		peakTerm = float64(len(result.MatchedPeaks)) / float64(len(ref.Peaks)) * 30
	}
	result.Confidence = result.Similarity*0.7 + peakTerm
	return result
}

// nearest returns the index of the point closest to wavelength, preferring
// the earliest on ties, and its distance.
func nearest(curve spectral.Curve, wavelength float64) (int, float64) {
	idx := 0
	best := math.Abs(curve[0].Wavelength - wavelength)
	for j := 1; j < len(curve); j++ {
		if d := math.Abs(curve[j].Wavelength - wavelength); d < best {
			best = d
			idx = j
		}
	}
	return idx, best
}
