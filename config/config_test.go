package config

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microplastic-id/ingest"
	"microplastic-id/matcher"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, *Default(), *cfg)
	assert.Equal(t, 0.98, cfg.Matching.ConfidenceCap)
	assert.Equal(t, 0.95, cfg.Matching.SimilarityCap)
	assert.Equal(t, 50.0, cfg.Matching.PeakToleranceNm)
	assert.Equal(t, 2*time.Second, cfg.Stream.Interval)
	assert.Equal(t, 20, cfg.Stream.History)
	assert.Equal(t, 30*time.Second, cfg.Analysis.FileTimeout)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mpid.yaml")
	content := "matching:\n  deterministic: true\n  peak_tolerance_nm: 40\nstream:\n  interval: 500ms\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Matching.Deterministic)
	assert.Equal(t, 40.0, cfg.Matching.PeakToleranceNm)
	assert.Equal(t, 500*time.Millisecond, cfg.Stream.Interval)
	assert.Equal(t, 3, cfg.Classifier.K)
}

func TestLoadFromConfigEnvironmentVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "from-env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classifier:\n  k: 9\n"), 0644))
	t.Setenv("MPID_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Classifier.K)

	t.Setenv("MPID_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MPID_MATCHING_CONFIDENCE_CAP", "0.9")
	t.Setenv("MPID_CLASSIFIER_K", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Matching.ConfidenceCap)
	assert.Equal(t, 7, cfg.Classifier.K)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"cap":         func(c *Config) { c.Matching.ConfidenceCap = 1.5 },
		"tolerance":   func(c *Config) { c.Matching.PeakToleranceNm = 0 },
		"k":           func(c *Config) { c.Classifier.K = 0 },
		"columns":     func(c *Config) { c.Ingest.ImageSampleColumns = 1 },
		"ratio":       func(c *Config) { c.Ingest.CSVPeakThresholdRatio = -0.1 },
		"dark":        func(c *Config) { c.Ingest.ImageDarkThreshold = 300 },
		"concurrency": func(c *Config) { c.Analysis.BatchConcurrency = 0 },
		"interval":    func(c *Config) { c.Stream.Interval = 0 },
		"timeout":     func(c *Config) { c.Analysis.FileTimeout = 0 },
		"negTimeout":  func(c *Config) { c.Analysis.FileTimeout = -time.Second },
		"plotRegion":  func(c *Config) { c.Ingest.ImagePlotLeft = 0.95 },
		"plotRows":    func(c *Config) { c.Ingest.ImagePlotBottom = 0.05 },
		"visible":     func(c *Config) { c.Ingest.ImageVisibleMaxNm = 300 },
		"matchPeak":   func(c *Config) { c.Matching.PeakThreshold = -0.1 },
		"matchDist":   func(c *Config) { c.Matching.PeakDistanceNm = -1 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	assert.NoError(t, Default().Validate())
}

func TestConversions(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ingest.DefaultOptions().CSV, cfg.IngestOptions().CSV)
	assert.Equal(t, int64(32<<20), cfg.IngestOptions().MaxBytes)
	assert.Equal(t, ingest.DefaultAxisDetector(), cfg.IngestOptions().Image.Detector)
	assert.Equal(t, ingest.DefaultOptions().Image, cfg.IngestOptions().Image)
	assert.Equal(t, matcher.DefaultCurveScorer(), cfg.CurveScorer())
	assert.Equal(t, 0.2, cfg.FeatureOptions().PeakThreshold)

	noise := rand.New(rand.NewSource(1))
	settings := cfg.MatcherSettings(noise)
	assert.NotNil(t, settings.Noise)
	assert.Equal(t, matcher.DefaultPeakScorer(), settings.Scorer)
	assert.Equal(t, matcher.MatchPeakThreshold, settings.PeakThreshold)
	assert.Equal(t, matcher.MatchPeakDistanceNm, settings.PeakDistanceNm)

	cfg.Matching.Deterministic = true
	assert.Nil(t, cfg.MatcherSettings(noise).Noise)
}

func TestImageAndMatchingKeysReachOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mpid.yaml")
	content := "ingest:\n  image_base_confidence: 0.4\n  image_plot_left: 0.05\n  image_wide_max_nm: 3000\n" +
		"matching:\n  peak_threshold: 0.25\n  peak_distance_nm: 15\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	image := cfg.IngestOptions().Image
	assert.Equal(t, 0.4, image.BaseConfidence)
	assert.Equal(t, 0.05, image.PlotLeft)
	assert.Equal(t, [2]float64{200, 3000}, image.WideRange)

	settings := cfg.MatcherSettings(nil)
	assert.Equal(t, 0.25, settings.PeakThreshold)
	assert.Equal(t, 15.0, settings.PeakDistanceNm)
}
