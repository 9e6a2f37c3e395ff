package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mdobak/go-xerrors"
	"golang.org/x/sync/errgroup"

	"microplastic-id/chat"
	"microplastic-id/config"
	"microplastic-id/db"
	"microplastic-id/ingest"
	"microplastic-id/matcher"
	"microplastic-id/models"
	"microplastic-id/spectral"
	"microplastic-id/utils"
)

var (
	ErrNoLibrary     = errors.New("no reference library loaded")
	ErrNoClassifier  = errors.New("classifier is not configured")
	ErrEmptyBatch    = errors.New("no files provided")
	ErrHistoryClosed = errors.New("history store is not configured")
)

// Options wires a Service. Only Config and Catalog are required.
type Options struct {
	Config     *config.Config
	Catalog    matcher.Catalog
	Classifier *matcher.Classifier
	Explainer  chat.Explainer
	Store      db.HistoryStore
	Noise      matcher.NoiseSource
}

// Service runs the full pipeline: ingest, peak matching, explanation,
// feature extraction, classification and history.
type Service struct {
	cfg        *config.Config
	matcher    *matcher.Matcher
	classifier *matcher.Classifier
	explainer  chat.Explainer
	store      db.HistoryStore

	libraryMu     sync.RWMutex
	library       []ingest.LibrarySample
	librarySource string
}

func NewService(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("analysis service requires a configuration")
	}
	if opts.Catalog.Len() == 0 {
		return nil, matcher.ErrEmptyCatalog
	}
	explainer := opts.Explainer
	if explainer == nil {
		explainer = chat.RuleExplainer{}
	}
	return &Service{
		cfg:        opts.Config,
		matcher:    matcher.NewMatcher(opts.Catalog, opts.Config.MatcherSettings(opts.Noise)),
		classifier: opts.Classifier,
		explainer:  explainer,
		store:      opts.Store,
	}, nil
}

// AnalyzeFile ingests one CSV or image upload and analyses the extracted
// curve. The result is recorded in history when a store is configured.
func (s *Service) AnalyzeFile(ctx context.Context, filename, contentType string, r io.Reader) (*Result, error) {
	start := time.Now()

	loaded, err := ingest.Load(ctx, filename, contentType, r, s.cfg.IngestOptions())
	if err != nil {
		return nil, err
	}

	result, err := s.analyze(ctx, loaded.Source, string(loaded.Kind), loaded.Curve, loaded.Peaks, loaded.ExtractionConfidence)
	if err != nil {
		return nil, err
	}
	result.Dataset = loaded.Dataset
	result.Image = loaded.Image
	result.LatencyMs = float64(time.Since(start).Microseconds()) / 1000

	s.record(ctx, result)
	return result, nil
}

// AnalyzeCurve analyses a curve that is already in memory.
func (s *Service) AnalyzeCurve(ctx context.Context, input CurveInput) (*Result, error) {
	start := time.Now()

	if err := input.Curve.Validate(); err != nil {
		return nil, fmt.Errorf("invalid curve from %s: %w", input.Source, err)
	}
	quality := input.ExtractionConfidence
	if quality == 0 {
		quality = 1
	}
	kind := input.Kind
	if kind == "" {
		kind = "curve"
	}

	opts := s.cfg.FeatureOptions()
	peaks := spectral.FindPeaks(input.Curve, opts.PeakThreshold, opts.PeakDistanceNm)

	result, err := s.analyze(ctx, input.Source, kind, input.Curve, peaks, quality)
	if err != nil {
		return nil, err
	}
	result.LatencyMs = float64(time.Since(start).Microseconds()) / 1000

	if input.Persist {
		s.record(ctx, result)
	}
	return result, nil
}

func (s *Service) analyze(ctx context.Context, source, kind string, curve spectral.Curve, peaks []spectral.Peak, quality float64) (*Result, error) {
	observed := s.matcher.ObservedPeaks(curve)
	prediction, err := s.matcher.Match(observed)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Source:               source,
		Kind:                 kind,
		Prediction:           prediction,
		CalibratedConfidence: matcher.CalibrateConfidence(prediction.Confidence, quality),
		Explanation:          s.explainer.Explain(ctx, prediction, observed),
		ObservedPeaks:        observed,
		Peaks:                peakInsights(peaks),
		ExtractionConfidence: quality,
		Curve:                curve,
	}

	if len(curve) >= 2 {
		features, err := spectral.ExtractFeatures(curve, s.cfg.FeatureOptions())
		if err != nil {
			return nil, err
		}
		result.Features = &features
		result.FeatureVector = spectral.FeatureVector(features, spectral.DefaultMaxPeaks)

		if s.classifier != nil {
			predictions, err := s.classifier.Predict(result.FeatureVector)
			if err != nil {
				utils.GetLogger().WarnContext(ctx, "classifier prediction skipped",
					slog.String("source", source),
					slog.Any("error", xerrors.New(err)),
				)
			} else {
				result.Classification = predictions
			}
		}
	}

	return result, nil
}

func peakInsights(peaks []spectral.Peak) []PeakInsight {
	insights := make([]PeakInsight, 0, len(peaks))
	maxIntensity := 0.0
	for _, p := range peaks {
		maxIntensity = max(maxIntensity, p.Intensity)
	}
	for _, p := range peaks {
		relative := 0.0
		if maxIntensity > 0 {
			relative = p.Intensity / maxIntensity
		}
		insights = append(insights, PeakInsight{
			Peak:         p,
			Class:        matcher.ClassifyPeak(p.Wavelength, p.Intensity),
			Significance: matcher.PeakSignificance(relative),
		})
	}
	return insights
}

func (s *Service) record(ctx context.Context, result *Result) {
	if s.store == nil {
		return
	}

	record := &models.AnalysisRecord{
		Source:               result.Source,
		Kind:                 result.Kind,
		Match:                result.Prediction.Match,
		Polymer:              result.Prediction.Polymer,
		Colorant:             result.Prediction.Colorant,
		Color:                result.Prediction.Color,
		Confidence:           result.CalibratedConfidence,
		Similarity:           result.Prediction.Similarity,
		ExtractionConfidence: result.ExtractionConfidence,
		Peaks:                result.ObservedPeaks,
		Explanation:          result.Explanation,
		Metadata: map[string]interface{}{
			"rawConfidence": result.Prediction.Confidence,
			"score":         result.Prediction.Score,
			"matchedPeaks":  result.Prediction.MatchedPeaks,
		},
	}
	if len(result.Classification) > 0 {
		record.Metadata["classifierLabel"] = result.Classification[0].Label
	}

	if err := s.store.StoreAnalysis(ctx, record); err != nil {
		utils.GetLogger().ErrorContext(ctx, "failed to store analysis",
			slog.String("source", result.Source),
			slog.Any("error", xerrors.New(err)),
		)
		return
	}
	result.ID = record.ID
}

// AnalyzeBatch analyses uploads concurrently. A failing file is reported in
// its own item and never aborts the rest of the batch.
func (s *Service) AnalyzeBatch(ctx context.Context, uploads []Upload) ([]BatchItem, error) {
	if len(uploads) == 0 {
		return nil, ErrEmptyBatch
	}

	items := make([]BatchItem, len(uploads))
	var g errgroup.Group
	g.SetLimit(s.cfg.Analysis.BatchConcurrency)

	for i, upload := range uploads {
		g.Go(func() error {
			fileCtx, cancel := context.WithTimeout(ctx, s.cfg.Analysis.FileTimeout)
			defer cancel()

			items[i].Source = upload.Filename
			result, err := s.AnalyzeFile(fileCtx, upload.Filename, upload.ContentType, bytes.NewReader(upload.Data))
			if err != nil {
				utils.GetLogger().WarnContext(ctx, "file analysis failed",
					slog.String("source", upload.Filename),
					slog.Any("error", xerrors.New(err)),
				)
				items[i].Error = err.Error()
				items[i].Code = ingest.ErrorCode(err)
				return nil
			}
			items[i].Result = result
			return nil
		})
	}

	_ = g.Wait()
	return items, nil
}

// LoadLibrary replaces the reference library used by CompareAgainstLibrary
// and teaches the classifier one prototype per usable sample.
func (s *Service) LoadLibrary(ctx context.Context, content, source string) ([]ingest.LibrarySample, error) {
	if err := ingest.CheckSize(source, int64(len(content)), s.cfg.Ingest.MaxUploadBytes); err != nil {
		return nil, err
	}
	samples, err := ingest.ParseLibraryCSV(content, source, s.cfg.Ingest.LibraryPeakThreshold)
	if err != nil {
		return nil, err
	}

	s.libraryMu.Lock()
	s.library = samples
	s.librarySource = source
	s.libraryMu.Unlock()

	if s.classifier != nil {
		added := 0
		for _, proto := range matcher.PrototypesFromLibrary(samples, source, s.cfg.FeatureOptions()) {
			if _, err := s.classifier.AddPrototype(proto); err != nil {
				utils.GetLogger().WarnContext(ctx, "library prototype rejected",
					slog.String("id", proto.ID),
					slog.Any("error", xerrors.New(err)),
				)
				continue
			}
			added++
		}
		utils.GetLogger().InfoContext(ctx, "library loaded",
			slog.String("source", source),
			slog.Int("samples", len(samples)),
			slog.Int("prototypes", added),
		)
	}

	return samples, nil
}

// CompareAgainstLibrary ingests an upload and matches its whole curve
// against the loaded reference library.
func (s *Service) CompareAgainstLibrary(ctx context.Context, filename, contentType string, r io.Reader) (matcher.CurveMatch, error) {
	s.libraryMu.RLock()
	library := s.library
	s.libraryMu.RUnlock()

	if len(library) == 0 {
		return matcher.CurveMatch{}, ErrNoLibrary
	}

	loaded, err := ingest.Load(ctx, filename, contentType, r, s.cfg.IngestOptions())
	if err != nil {
		return matcher.CurveMatch{}, err
	}
	return matcher.CompareCurves(loaded.Curve, library, s.cfg.CurveScorer()), nil
}

// Classify runs only the nearest-prototype classifier on a curve.
func (s *Service) Classify(curve spectral.Curve) ([]matcher.Prediction, error) {
	if s.classifier == nil {
		return nil, ErrNoClassifier
	}
	return s.classifier.PredictCurve(curve, s.cfg.FeatureOptions())
}

func (s *Service) History(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	if s.store == nil {
		return nil, ErrHistoryClosed
	}
	return s.store.ListAnalyses(ctx, limit)
}

func (s *Service) Catalog() matcher.Catalog {
	return s.matcher.Catalog()
}

func (s *Service) ModelInfo() ModelInfo {
	s.libraryMu.RLock()
	librarySamples := len(s.library)
	librarySource := s.librarySource
	s.libraryMu.RUnlock()

	info := ModelInfo{
		CatalogSize:    s.matcher.Catalog().Len(),
		Materials:      s.matcher.Catalog().Materials(),
		LibrarySamples: librarySamples,
		LibrarySource:  librarySource,
		Deterministic:  s.cfg.Matching.Deterministic,
	}
	if s.classifier != nil {
		info.Classifier = s.classifier.Stats()
	}
	return info
}
