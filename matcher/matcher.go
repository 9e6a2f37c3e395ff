package matcher

import (
	"math"
	"math/rand"
	"sort"

	"microplastic-id/spectral"
)

// Default peak picking for matching mode.
const (
	MatchPeakThreshold  = 0.3
	MatchPeakDistanceNm = 20.0
)

// NoiseSource supplies uniform values in [0,1). *rand.Rand satisfies it.
type NoiseSource interface {
	Float64() float64
}

// SharedNoise draws from the package-level math/rand source, which is safe
// for concurrent matches.
type SharedNoise struct{}

func (SharedNoise) Float64() float64 { return rand.Float64() }

// Settings tunes a Matcher. A nil Noise disables jitter and makes Match
// deterministic. Zero PeakThreshold and PeakDistanceNm select the
// matching-mode defaults.
type Settings struct {
	Scorer           Scorer
	Noise            NoiseSource
	PeakThreshold    float64
	PeakDistanceNm   float64
	ConfidenceCap    float64
	SimilarityCap    float64
	ConfidenceJitter float64
	SimilarityJitter float64
}

func DefaultSettings() Settings {
	return Settings{
		Scorer:           DefaultPeakScorer(),
		PeakThreshold:    MatchPeakThreshold,
		PeakDistanceNm:   MatchPeakDistanceNm,
		ConfidenceCap:    0.98,
		SimilarityCap:    0.95,
		ConfidenceJitter: 0.1,
		SimilarityJitter: 0.05,
	}
}

// Matcher picks the catalog entry that best explains an observation.
type Matcher struct {
	catalog  Catalog
	settings Settings
}

func NewMatcher(catalog Catalog, settings Settings) *Matcher {
	if settings.Scorer == nil {
		settings.Scorer = DefaultPeakScorer()
	}
	if settings.PeakThreshold == 0 && settings.PeakDistanceNm == 0 {
		settings.PeakThreshold = MatchPeakThreshold
		settings.PeakDistanceNm = MatchPeakDistanceNm
	}
	return &Matcher{catalog: catalog, settings: settings}
}

func (m *Matcher) Catalog() Catalog {
	return m.catalog
}

// Match scores observed peak wavelengths against every catalog entry.
func (m *Matcher) Match(observedPeaks []float64) (MatchResult, error) {
	return m.MatchObservation(Observation{Peaks: observedPeaks})
}

// MatchObservation is Match for scorers that also look at the curve.
//
// The first catalog entry is the default answer; a later entry replaces the
// current best only with a strictly higher score, so ties resolve to catalog
// order and a zero score everywhere still yields the first entry.
func (m *Matcher) MatchObservation(obs Observation) (MatchResult, error) {
	if m.catalog.Len() == 0 {
		return MatchResult{}, ErrEmptyCatalog
	}

	bestIdx := 0
	best := Score{MatchedPeaks: []float64{}}
	for i := 0; i < m.catalog.Len(); i++ {
		score := m.settings.Scorer.Score(obs, m.catalog.at(i).Reference())
		if score.Similarity > best.Similarity {
			best = score
			bestIdx = i
		}
	}

	confidence, similarity := best.Similarity, best.Similarity
	if m.settings.Noise != nil {
		confidence += m.settings.Noise.Float64() * m.settings.ConfidenceJitter
		similarity += m.settings.Noise.Float64() * m.settings.SimilarityJitter
	}

	material := m.catalog.at(bestIdx)
	return MatchResult{
		Match:           material.Type,
		Type:            material.Type,
		Color:           material.Color,
		Polymer:         material.Polymer,
		Colorant:        material.Colorant,
		Confidence:      clamp(confidence, 0, m.settings.ConfidenceCap),
		Similarity:      clamp(similarity, 0, m.settings.SimilarityCap),
		Score:           best.Similarity,
		MatchedPeaks:    best.MatchedPeaks,
		Characteristics: append([]string(nil), material.Characteristics...),
	}, nil
}

// Rank scores every catalog entry, best first. Equal scores keep catalog order.
func (m *Matcher) Rank(observedPeaks []float64) []Candidate {
	obs := Observation{Peaks: observedPeaks}
	materials := m.catalog.Materials()
	candidates := make([]Candidate, len(materials))
	for i, material := range materials {
		candidates[i] = Candidate{Material: material, Score: m.settings.Scorer.Score(obs, material.Reference())}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score.Similarity > candidates[j].Score.Similarity
	})
	return candidates
}

// MatchPeaks finds the dominant peaks used for catalog matching, ordered by
// descending wavelength.
func MatchPeaks(curve spectral.Curve) []float64 {
	return MatchPeaksWith(curve, MatchPeakThreshold, MatchPeakDistanceNm)
}

func MatchPeaksWith(curve spectral.Curve, threshold, minDistanceNm float64) []float64 {
	wavelengths := spectral.Wavelengths(spectral.FindPeaks(curve, threshold, minDistanceNm))
	sort.Sort(sort.Reverse(sort.Float64Slice(wavelengths)))
	return wavelengths
}

// ObservedPeaks is MatchPeaks with the matcher's configured thresholds.
func (m *Matcher) ObservedPeaks(curve spectral.Curve) []float64 {
	return MatchPeaksWith(curve, m.settings.PeakThreshold, m.settings.PeakDistanceNm)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
