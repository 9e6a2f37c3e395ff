package matcher

// K-Nearest Neighbours Classifier
//
// A prototype is a labelled feature vector taken from a reference spectrum
// (see spectral.FeatureVector). Classification works in three steps:
//
//  1. Every prototype and the query are z-scored with a FeatureScaler fitted
//     on the prototype set, then normalised to unit length.
//  2. Distance is 1 - cosine similarity. The k closest prototypes vote.
//  3. Each neighbour votes with weight 1/(distance+eps). A label's confidence
//     is its share of the total weight; support and average distance are
//     reported alongside.
//
// Prototypes can be added at runtime. The scaler is refitted on every change
// so stored features stay raw and the model file round-trips cleanly.

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"

	"microplastic-id/spectral"
	"microplastic-id/utils"
)

var ErrFeatureDimension = errors.New("feature vector dimension does not match the model")

// Classifier performs k-nearest prototype lookups in feature space.
type Classifier struct {
	mu            sync.RWMutex
	prototypes    []Prototype
	scaled        [][]float64
	k             int
	usingExample  bool
	modelPath     string
	featureScaler *FeatureScaler
}

type distancePair struct {
	index    int
	distance float64
}

// NewClassifier builds a classifier over prototypes. modelPath is where
// SavePrototypesToFile writes and may be empty.
func NewClassifier(prototypes []Prototype, k int, modelPath string) (*Classifier, error) {
	if k <= 0 {
		return nil, fmt.Errorf("invalid neighbour count: %d", k)
	}
	if err := validatePrototypes(prototypes); err != nil {
		return nil, err
	}

	c := &Classifier{
		prototypes: clonePrototypes(prototypes),
		k:          k,
		modelPath:  modelPath,
	}
	if err := c.refit(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewClassifierFromFile loads prototypes from the supplied JSON file, falling
// back to "<name>.example<ext>" when it is missing.
func NewClassifierFromFile(path string, k int) (*Classifier, error) {
	resolvedPath := filepath.Clean(path)
	usingExample := false

	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		// e.g. "prototypes.json" -> "prototypes.example.json"
		ext := filepath.Ext(resolvedPath)
		fallbackPath := strings.TrimSuffix(resolvedPath, ext) + ".example" + ext
		data, err = os.ReadFile(fallbackPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load prototypes (%s): %w", resolvedPath, err)
		}
		utils.GetLogger().Warn("falling back to example prototypes", "path", fallbackPath)
		usingExample = true
	}

	var prototypes []Prototype
	if err := json.Unmarshal(data, &prototypes); err != nil {
		return nil, fmt.Errorf("unable to parse prototypes: %w", err)
	}
	if len(prototypes) == 0 {
		utils.GetLogger().Warn("no prototypes loaded; classifier will start empty", "path", resolvedPath)
	}

	// saves always go to the primary path, never over the example
	c, err := NewClassifier(prototypes, k, resolvedPath)
	if err != nil {
		return nil, err
	}
	c.usingExample = usingExample
	return c, nil
}

func validatePrototypes(prototypes []Prototype) error {
	featureCount := -1
	for _, proto := range prototypes {
		if len(proto.Features) == 0 {
			return fmt.Errorf("prototype %s has no features", proto.ID)
		}
		if proto.Label == "" {
			return fmt.Errorf("prototype %s missing label", proto.ID)
		}
		if featureCount >= 0 && len(proto.Features) != featureCount {
			return fmt.Errorf("prototype %s has %d features, expected %d", proto.ID, len(proto.Features), featureCount)
		}
		featureCount = len(proto.Features)
	}
	return nil
}

// refit recomputes the scaler and the scaled prototype matrix. Callers hold
// the write lock or own c exclusively.
func (c *Classifier) refit() error {
	if len(c.prototypes) == 0 {
		c.featureScaler = nil
		c.scaled = nil
		return nil
	}

	raw := make([][]float64, len(c.prototypes))
	for i, proto := range c.prototypes {
		raw[i] = proto.Features
	}
	scaler, err := NewFeatureScaler(raw)
	if err != nil {
		return fmt.Errorf("failed to fit feature scaler: %w", err)
	}

	scaled := make([][]float64, len(raw))
	for i, vec := range raw {
		scaled[i] = scaler.TransformAndNormalize(vec)
	}
	c.featureScaler = scaler
	c.scaled = scaled
	return nil
}

func clonePrototypes(in []Prototype) []Prototype {
	out := make([]Prototype, len(in))
	for i, proto := range in {
		proto.Features = append([]float64(nil), proto.Features...)
		proto.Metadata = copyMetadata(proto.Metadata)
		out[i] = proto
	}
	return out
}

func copyMetadata(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	clone := make(map[string]string, len(meta))
	for key, value := range meta {
		clone[key] = value
	}
	return clone
}

// AddPrototype appends a prototype and refits the scaler.
func (c *Classifier) AddPrototype(proto Prototype) (Prototype, error) {
	if len(proto.Features) == 0 {
		return Prototype{}, errors.New("prototype has no features")
	}
	if proto.Label == "" {
		return Prototype{}, errors.New("prototype missing label")
	}

	proto = clonePrototypes([]Prototype{proto})[0]
	if proto.Description != "" {
		if proto.Metadata == nil {
			proto.Metadata = map[string]string{}
		}
		if _, ok := proto.Metadata["description"]; !ok {
			proto.Metadata["description"] = proto.Description
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.prototypes) > 0 && len(c.prototypes[0].Features) != len(proto.Features) {
		return Prototype{}, fmt.Errorf("%w: got %d, want %d", ErrFeatureDimension, len(proto.Features), len(c.prototypes[0].Features))
	}

	c.prototypes = append(c.prototypes, proto)
	if err := c.refit(); err != nil {
		c.prototypes = c.prototypes[:len(c.prototypes)-1]
		return Prototype{}, err
	}
	// once custom prototypes are added, the set is no longer the example
	c.usingExample = false

	return proto, nil
}

// SavePrototypesToFile persists the raw prototypes to the model path.
func (c *Classifier) SavePrototypesToFile() error {
	c.mu.RLock()
	modelPath := c.modelPath
	data, err := json.MarshalIndent(c.prototypes, "", "  ")
	c.mu.RUnlock()

	if modelPath == "" {
		return errors.New("model path not set")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal prototypes: %w", err)
	}

	if err := utils.CreateFolder(filepath.Dir(modelPath)); err != nil {
		return err
	}

	tempPath := modelPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write prototypes: %w", err)
	}
	if err := os.Rename(tempPath, modelPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	c.mu.Lock()
	c.usingExample = false
	c.mu.Unlock()

	return nil
}

// Stats returns summary metadata about the loaded prototype set.
func (c *Classifier) Stats() ModelStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make(map[string]ModelLabelStat)
	for _, proto := range c.prototypes {
		entry := entries[proto.Label]
		entry.Label = proto.Label
		if entry.Polymer == "" {
			entry.Polymer = proto.Polymer
		}
		entry.Prototypes++
		entries[proto.Label] = entry
	}

	labels := make([]ModelLabelStat, 0, len(entries))
	for _, stat := range entries {
		labels = append(labels, stat)
	}
	// keep labels sorted for deterministic responses
	sort.Slice(labels, func(i, j int) bool { return labels[i].Label < labels[j].Label })

	featureCount := 0
	if len(c.prototypes) > 0 {
		featureCount = len(c.prototypes[0].Features)
	}

	return ModelStats{
		PrototypeCount: len(c.prototypes),
		LabelCount:     len(entries),
		FeatureCount:   featureCount,
		K:              min(c.k, max(1, len(c.prototypes))),
		Labels:         labels,
		UsingExample:   c.usingExample,
	}
}

// Predict ranks labels for a raw feature vector, most likely first. An empty
// model yields no predictions.
func (c *Classifier) Predict(features []float64) ([]Prediction, error) {
	if len(features) == 0 {
		return nil, errors.New("feature vector is empty")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.prototypes) == 0 {
		return []Prediction{}, nil
	}
	if len(features) != len(c.featureScaler.Mean) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureDimension, len(features), len(c.featureScaler.Mean))
	}

	query := c.featureScaler.TransformAndNormalize(features)
	k := min(c.k, len(c.prototypes))

	distances := make([]distancePair, len(c.scaled))
	for i, proto := range c.scaled {
		distances[i] = distancePair{index: i, distance: 1 - cosineSimilarity(query, proto)}
	}
	sort.SliceStable(distances, func(i, j int) bool {
		return distances[i].distance < distances[j].distance
	})

	type labelStats struct {
		weightSum  float64
		distSum    float64
		count      int
		polymer    string
		metadata   map[string]string
		prototypes []PrototypeScore
	}
	labelScores := make(map[string]*labelStats)

	var totalWeight float64
	for _, neighbor := range distances[:k] {
		proto := c.prototypes[neighbor.index]
		// tiny epsilon keeps exact matches finite
		weight := 1.0 / (math.Max(0, neighbor.distance) + 1e-9)

		stats, ok := labelScores[proto.Label]
		if !ok {
			stats = &labelStats{polymer: proto.Polymer, metadata: map[string]string{}}
			labelScores[proto.Label] = stats
		}
		stats.weightSum += weight
		stats.distSum += neighbor.distance
		stats.count++
		for key, value := range proto.Metadata {
			stats.metadata[key] = value
		}
		stats.prototypes = append(stats.prototypes, PrototypeScore{
			ID:       proto.ID,
			Distance: neighbor.distance,
			Weight:   weight,
			Source:   proto.Source,
		})
		totalWeight += weight
	}

	predictions := make([]Prediction, 0, len(labelScores))
	for label, stats := range labelScores {
		var metadata map[string]string
		if len(stats.metadata) > 0 {
			metadata = stats.metadata
		}
		predictions = append(predictions, Prediction{
			Label:         label,
			Polymer:       stats.polymer,
			Description:   stats.metadata["description"],
			Confidence:    stats.weightSum / totalWeight,
			AverageDist:   stats.distSum / float64(stats.count),
			Support:       stats.count,
			TopPrototypes: stats.prototypes,
			Metadata:      metadata,
		})
	}

	sort.Slice(predictions, func(i, j int) bool {
		if math.Abs(predictions[i].Confidence-predictions[j].Confidence) > 1e-9 {
			return predictions[i].Confidence > predictions[j].Confidence
		}
		if predictions[i].AverageDist != predictions[j].AverageDist {
			return predictions[i].AverageDist < predictions[j].AverageDist
		}
		return predictions[i].Label < predictions[j].Label
	})

	return predictions, nil
}

// PredictCurve extracts the feature vector of curve and classifies it.
func (c *Classifier) PredictCurve(curve spectral.Curve, opts spectral.FeatureOptions) ([]Prediction, error) {
	features, err := spectral.ExtractFeatures(curve, opts)
	if err != nil {
		return nil, err
	}
	return c.Predict(spectral.FeatureVector(features, spectral.DefaultMaxPeaks))
}

// cosineSimilarity returns a value in [-1, 1]; 1 means identical direction.
func cosineSimilarity(a, b []float64) float64 {
	normA, normB := floats.Norm(a, 2), floats.Norm(b, 2)
	if normA == 0 || normB == 0 || len(a) != len(b) {
		return 0.0
	}
	return floats.Dot(a, b) / (normA * normB)
}
