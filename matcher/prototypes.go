package matcher

import (
	"fmt"
	"math"
	"strings"

	"microplastic-id/ingest"
	"microplastic-id/spectral"
	"microplastic-id/utils"
)

// PrototypeFromCurve turns a reference spectrum into a classifier prototype.
func PrototypeFromCurve(id, label, polymer, source string, curve spectral.Curve, opts spectral.FeatureOptions) (Prototype, error) {
	features, err := spectral.ExtractFeatures(curve, opts)
	if err != nil {
		return Prototype{}, fmt.Errorf("prototype %s: %w", id, err)
	}
	return Prototype{
		ID:       id,
		Label:    label,
		Polymer:  polymer,
		Source:   source,
		Features: spectral.FeatureVector(features, spectral.DefaultMaxPeaks),
	}, nil
}

// PrototypesFromLibrary builds one prototype per library sample. Samples too
// short to describe are skipped with a warning.
func PrototypesFromLibrary(samples []ingest.LibrarySample, source string, opts spectral.FeatureOptions) []Prototype {
	logger := utils.GetLogger()
	prototypes := make([]Prototype, 0, len(samples))
	for i, sample := range samples {
		id := fmt.Sprintf("%s_%d", slug(sample.Name), i+1)
		proto, err := PrototypeFromCurve(id, sample.Type, "", source, sample.Curve, opts)
		if err != nil {
			logger.Warn("skipping library sample", "sample", sample.Name, "error", err)
			continue
		}
		proto.Description = sample.Name
		prototypes = append(prototypes, proto)
	}
	return prototypes
}

// PrototypesFromCatalog synthesises a spectrum for every catalog material and
// turns each into a prototype, so a classifier can run without a library.
func PrototypesFromCatalog(catalog Catalog) []Prototype {
	materials := catalog.Materials()
	prototypes := make([]Prototype, 0, len(materials))
	for _, m := range materials {
		proto, err := PrototypeFromCurve(slug(m.Type), m.Type, m.Polymer, "catalog", SynthesizeCurve(m), spectral.DefaultFeatureOptions())
		if err != nil {
			continue
		}
		proto.Metadata = map[string]string{"color": m.Color, "colorant": m.Colorant}
		prototypes = append(prototypes, proto)
	}
	return prototypes
}

// SynthesizeCurve renders a material as a 400-800 nm spectrum with a Gaussian
// band at each reference peak. Earlier peaks are drawn taller.
func SynthesizeCurve(m ReferenceMaterial) spectral.Curve {
	curve := make(spectral.Curve, 0, 201)
	for w := 400.0; w <= 800; w += 2 {
		absorbance := 0.1
		for i, peak := range m.PeakWavelengths {
			z := (w - peak) / 15
			absorbance += math.Max(0.2, 0.6-0.1*float64(i)) * math.Exp(-z*z)
		}
		curve = append(curve, spectral.Point{Wavelength: w, Absorbance: absorbance})
	}
	return curve
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), "_")
}
