package matcher

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"microplastic-id/ingest"
	"microplastic-id/spectral"
)

func TestClassifierPredictPrefersMajorityLabel(t *testing.T) {
	t.Parallel()

	classifier := newTestClassifier(t, []Prototype{
		{ID: "alpha_1", Label: "alpha", Features: []float64{1, 0, 0}},
		{ID: "alpha_2", Label: "alpha", Features: []float64{0.9, 0.1, 0}},
		{ID: "beta_1", Label: "beta", Features: []float64{0, 0, 1}},
	}, 3)

	predictions, err := classifier.Predict([]float64{1, 0, 0})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if len(predictions) == 0 {
		t.Fatalf("no predictions returned")
	}
	if predictions[0].Label != "alpha" {
		t.Fatalf("expected alpha as top prediction, got %s", predictions[0].Label)
	}
	if predictions[0].Support != 2 {
		t.Fatalf("expected support=2 for alpha, got %d", predictions[0].Support)
	}
	if predictions[0].Confidence <= 0.5 {
		t.Fatalf("expected confidence > 0.5 for alpha, got %.3f", predictions[0].Confidence)
	}
}

func TestClassifierPredictRespondsToFeatureShift(t *testing.T) {
	t.Parallel()

	classifier := newTestClassifier(t, []Prototype{
		{ID: "alpha_1", Label: "alpha", Features: []float64{1, 0, 0}},
		{ID: "alpha_2", Label: "alpha", Features: []float64{0.9, 0.1, 0}},
		{ID: "beta_1", Label: "beta", Features: []float64{0, 0, 1}},
	}, 3)

	predictions, err := classifier.Predict([]float64{0, 0, 1})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if predictions[0].Label != "beta" {
		t.Fatalf("expected beta as top prediction, got %s", predictions[0].Label)
	}
	if predictions[0].Confidence < 0.9 {
		t.Fatalf("expected beta confidence >= 0.9, got %.3f", predictions[0].Confidence)
	}
}

func TestClassifierScaledPrototypesAreNormalised(t *testing.T) {
	t.Parallel()

	classifier := newTestClassifier(t, PrototypesFromCatalog(DefaultCatalog()), 3)
	for i, vec := range classifier.scaled {
		var sum float64
		for _, v := range vec {
			sum += v * v
		}
		if math.Abs(math.Sqrt(sum)-1) > 1e-6 {
			t.Errorf("prototype %d is not normalised (||v||=%f)", i, math.Sqrt(sum))
		}
	}
}

func TestClassifierRecognisesSynthesizedCatalog(t *testing.T) {
	t.Parallel()

	catalog := DefaultCatalog()
	classifier := newTestClassifier(t, PrototypesFromCatalog(catalog), 1)

	for _, material := range catalog.Materials() {
		predictions, err := classifier.PredictCurve(SynthesizeCurve(material), spectral.DefaultFeatureOptions())
		if err != nil {
			t.Fatalf("PredictCurve(%s) returned error: %v", material.Type, err)
		}
		if predictions[0].Label != material.Type {
			t.Errorf("expected %s, got %s", material.Type, predictions[0].Label)
		}
		if predictions[0].Polymer != material.Polymer {
			t.Errorf("expected polymer %s, got %s", material.Polymer, predictions[0].Polymer)
		}
	}
}

func TestClassifierRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	classifier := newTestClassifier(t, []Prototype{
		{ID: "a", Label: "a", Features: []float64{1, 0}},
		{ID: "b", Label: "b", Features: []float64{0, 1}},
	}, 1)

	if _, err := classifier.Predict([]float64{1, 0, 0}); !errors.Is(err, ErrFeatureDimension) {
		t.Fatalf("expected ErrFeatureDimension, got %v", err)
	}
	if _, err := classifier.AddPrototype(Prototype{ID: "c", Label: "c", Features: []float64{1}}); !errors.Is(err, ErrFeatureDimension) {
		t.Fatalf("expected ErrFeatureDimension on add, got %v", err)
	}
	if _, err := classifier.Predict(nil); err == nil {
		t.Fatalf("expected error for empty feature vector")
	}
	if _, err := NewClassifier(nil, 0, ""); err == nil {
		t.Fatalf("expected error for k=0")
	}
}

func TestClassifierEmptyModelPredictsNothing(t *testing.T) {
	t.Parallel()

	classifier := newTestClassifier(t, nil, 5)
	predictions, err := classifier.Predict([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if len(predictions) != 0 {
		t.Fatalf("expected no predictions, got %d", len(predictions))
	}
}

func TestClassifierAddSaveAndReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	examplePath := filepath.Join(dir, "prototypes.example.json")
	data, err := json.Marshal([]Prototype{
		{ID: "a", Label: "alpha", Features: []float64{1, 0}},
		{ID: "b", Label: "beta", Features: []float64{0, 1}},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(examplePath, data, 0644); err != nil {
		t.Fatalf("write example: %v", err)
	}

	modelPath := filepath.Join(dir, "prototypes.json")
	classifier, err := NewClassifierFromFile(modelPath, 3)
	if err != nil {
		t.Fatalf("NewClassifierFromFile returned error: %v", err)
	}
	if !classifier.Stats().UsingExample {
		t.Fatalf("expected example fallback to be reported")
	}

	if _, err := classifier.AddPrototype(Prototype{ID: "c", Label: "alpha", Description: "extra", Features: []float64{0.9, 0.2}}); err != nil {
		t.Fatalf("AddPrototype returned error: %v", err)
	}
	if err := classifier.SavePrototypesToFile(); err != nil {
		t.Fatalf("SavePrototypesToFile returned error: %v", err)
	}

	reloaded, err := NewClassifierFromFile(modelPath, 3)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	stats := reloaded.Stats()
	if stats.UsingExample {
		t.Fatalf("expected primary model file after save")
	}
	if stats.PrototypeCount != 3 || stats.LabelCount != 2 || stats.FeatureCount != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Labels[0].Label != "alpha" || stats.Labels[0].Prototypes != 2 {
		t.Fatalf("unexpected label stats: %+v", stats.Labels)
	}

	saved, err := os.ReadFile(modelPath)
	if err != nil {
		t.Fatalf("read saved model: %v", err)
	}
	var protos []Prototype
	if err := json.Unmarshal(saved, &protos); err != nil {
		t.Fatalf("parse saved model: %v", err)
	}
	if protos[0].Features[0] != 1 || protos[0].Features[1] != 0 {
		t.Fatalf("expected raw features to be persisted, got %v", protos[0].Features)
	}
	if protos[2].Metadata["description"] != "extra" {
		t.Fatalf("expected description to be copied into metadata")
	}
}

func TestPrototypesFromLibrarySkipsShortSamples(t *testing.T) {
	t.Parallel()

	material := DefaultCatalog().Materials()[2]
	samples := []ingest.LibrarySample{
		{Name: "Red Cap", Type: "PP", Curve: SynthesizeCurve(material)},
		{Name: "Stub", Type: "PE", Curve: SynthesizeCurve(material)[:1]},
	}
	protos := PrototypesFromLibrary(samples, "library.csv", spectral.DefaultFeatureOptions())
	if len(protos) != 1 {
		t.Fatalf("expected 1 prototype, got %d", len(protos))
	}
	if protos[0].ID != "red_cap_1" || protos[0].Label != "PP" || protos[0].Description != "Red Cap" {
		t.Fatalf("unexpected prototype: %+v", protos[0])
	}
}

func newTestClassifier(t *testing.T, protos []Prototype, k int) *Classifier {
	t.Helper()
	classifier, err := NewClassifier(protos, k, "")
	if err != nil {
		t.Fatalf("NewClassifier returned error: %v", err)
	}
	return classifier
}
