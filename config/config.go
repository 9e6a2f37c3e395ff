package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"microplastic-id/ingest"
	"microplastic-id/matcher"
	"microplastic-id/spectral"
)

const EnvPrefix = "MPID"

// Config holds every tunable threshold of the analysis pipeline.
type Config struct {
	// LogLevel overrides LOG_LEVEL when set.
	LogLevel string `mapstructure:"log_level"`

	Ingest     IngestConfig     `mapstructure:"ingest"`
	Features   FeatureConfig    `mapstructure:"features"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Curve      CurveConfig      `mapstructure:"curve"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Stream     StreamConfig     `mapstructure:"stream"`
}

// IngestConfig controls CSV, image and library parsing.
type IngestConfig struct {
	MaxUploadBytes          int64   `mapstructure:"max_upload_bytes"`
	CSVPeakThresholdRatio   float64 `mapstructure:"csv_peak_threshold_ratio"`
	CSVPeakDistanceNm       float64 `mapstructure:"csv_peak_distance_nm"`
	LibraryPeakThreshold    float64 `mapstructure:"library_peak_threshold"`
	ImageSampleColumns      int     `mapstructure:"image_sample_columns"`
	ImagePeakThresholdRatio float64 `mapstructure:"image_peak_threshold_ratio"`
	ImageMaxDimension       int     `mapstructure:"image_max_dimension"`
	ImageDarkThreshold      int     `mapstructure:"image_dark_threshold"`

	// Plot region as fractions of the image size.
	ImagePlotLeft   float64 `mapstructure:"image_plot_left"`
	ImagePlotRight  float64 `mapstructure:"image_plot_right"`
	ImagePlotTop    float64 `mapstructure:"image_plot_top"`
	ImagePlotBottom float64 `mapstructure:"image_plot_bottom"`

	ImageVisibleMinNm float64 `mapstructure:"image_visible_min_nm"`
	ImageVisibleMaxNm float64 `mapstructure:"image_visible_max_nm"`
	ImageWideMinNm    float64 `mapstructure:"image_wide_min_nm"`
	ImageWideMaxNm    float64 `mapstructure:"image_wide_max_nm"`

	ImageBaseConfidence    float64 `mapstructure:"image_base_confidence"`
	ImageAxisBonus         float64 `mapstructure:"image_axis_bonus"`
	ImageSignalBonus       float64 `mapstructure:"image_signal_bonus"`
	ImageSignalVarianceMin float64 `mapstructure:"image_signal_variance_min"`
}

type FeatureConfig struct {
	PeakThreshold  float64 `mapstructure:"peak_threshold"`
	PeakDistanceNm float64 `mapstructure:"peak_distance_nm"`
}

// MatchingConfig drives catalog matching. Deterministic turns jitter off.
type MatchingConfig struct {
	CatalogPath      string  `mapstructure:"catalog_path"`
	PeakThreshold    float64 `mapstructure:"peak_threshold"`
	PeakDistanceNm   float64 `mapstructure:"peak_distance_nm"`
	PeakToleranceNm  float64 `mapstructure:"peak_tolerance_nm"`
	ConfidenceCap    float64 `mapstructure:"confidence_cap"`
	SimilarityCap    float64 `mapstructure:"similarity_cap"`
	ConfidenceJitter float64 `mapstructure:"confidence_jitter"`
	SimilarityJitter float64 `mapstructure:"similarity_jitter"`
	Deterministic    bool    `mapstructure:"deterministic"`
}

type CurveConfig struct {
	WindowNm          float64 `mapstructure:"window_nm"`
	PeakWindowNm      float64 `mapstructure:"peak_window_nm"`
	PeakMinAbsorbance float64 `mapstructure:"peak_min_absorbance"`
}

type ClassifierConfig struct {
	ModelPath string `mapstructure:"model_path"`
	K         int    `mapstructure:"k"`
}

type AnalysisConfig struct {
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	FileTimeout      time.Duration `mapstructure:"file_timeout"`
}

type StreamConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	History  int           `mapstructure:"history"`
}

// SetDefaults registers the default of every key so that environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "")

	v.SetDefault("ingest.max_upload_bytes", 32<<20)
	v.SetDefault("ingest.csv_peak_threshold_ratio", 0.1)
	v.SetDefault("ingest.csv_peak_distance_nm", 0.0)
	v.SetDefault("ingest.library_peak_threshold", ingest.DefaultLibraryPeakThreshold)
	v.SetDefault("ingest.image_sample_columns", 100)
	v.SetDefault("ingest.image_peak_threshold_ratio", 0.2)
	v.SetDefault("ingest.image_max_dimension", 4096)
	v.SetDefault("ingest.image_dark_threshold", 100)
	v.SetDefault("ingest.image_plot_left", 0.1)
	v.SetDefault("ingest.image_plot_right", 0.9)
	v.SetDefault("ingest.image_plot_top", 0.1)
	v.SetDefault("ingest.image_plot_bottom", 0.8)
	v.SetDefault("ingest.image_visible_min_nm", 400.0)
	v.SetDefault("ingest.image_visible_max_nm", 800.0)
	v.SetDefault("ingest.image_wide_min_nm", 200.0)
	v.SetDefault("ingest.image_wide_max_nm", 4000.0)
	v.SetDefault("ingest.image_base_confidence", 0.5)
	v.SetDefault("ingest.image_axis_bonus", 0.2)
	v.SetDefault("ingest.image_signal_bonus", 0.1)
	v.SetDefault("ingest.image_signal_variance_min", 0.01)

	v.SetDefault("features.peak_threshold", spectral.DefaultFeaturePeakThreshold)
	v.SetDefault("features.peak_distance_nm", spectral.DefaultFeaturePeakDistance)

	v.SetDefault("matching.catalog_path", "")
	v.SetDefault("matching.peak_threshold", matcher.MatchPeakThreshold)
	v.SetDefault("matching.peak_distance_nm", matcher.MatchPeakDistanceNm)
	v.SetDefault("matching.peak_tolerance_nm", 50.0)
	v.SetDefault("matching.confidence_cap", 0.98)
	v.SetDefault("matching.similarity_cap", 0.95)
	v.SetDefault("matching.confidence_jitter", 0.1)
	v.SetDefault("matching.similarity_jitter", 0.05)
	v.SetDefault("matching.deterministic", false)

	v.SetDefault("curve.window_nm", 50.0)
	v.SetDefault("curve.peak_window_nm", 30.0)
	v.SetDefault("curve.peak_min_absorbance", 0.3)

	v.SetDefault("classifier.model_path", "data/prototypes.json")
	v.SetDefault("classifier.k", 3)

	v.SetDefault("analysis.batch_concurrency", 4)
	v.SetDefault("analysis.file_timeout", "30s")

	v.SetDefault("stream.interval", "2s")
	v.SetDefault("stream.history", 20)
}

// NewViper returns a viper instance with defaults and MPID_ environment
// bindings, e.g. MPID_MATCHING_CONFIDENCE_CAP.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from path. An empty path falls back to the
// MPID_CONFIG environment variable and then to ./configs/mpid.yaml. A missing
// default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	return LoadViper(NewViper(), path)
}

// LoadViper is Load for a caller-prepared viper instance, e.g. one with
// command-line flags already bound.
func LoadViper(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./configs")
		v.SetConfigName("mpid")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read configuration: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the built-in configuration without consulting files or env.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	config := &Config{}
	_ = v.Unmarshal(config)
	return config
}

func (c *Config) Validate() error {
	if c.Ingest.MaxUploadBytes < 0 {
		return fmt.Errorf("max upload bytes cannot be negative")
	}
	if c.Ingest.ImageSampleColumns < 2 {
		return fmt.Errorf("image sample columns must be at least 2")
	}
	if c.Ingest.ImageDarkThreshold < 0 || c.Ingest.ImageDarkThreshold > 255 {
		return fmt.Errorf("image dark threshold must be between 0 and 255")
	}
	for name, ratio := range map[string]float64{
		"csv peak threshold ratio":   c.Ingest.CSVPeakThresholdRatio,
		"image peak threshold ratio": c.Ingest.ImagePeakThresholdRatio,
	} {
		if ratio < 0 || ratio > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.Ingest.ImagePlotLeft < 0 || c.Ingest.ImagePlotLeft >= c.Ingest.ImagePlotRight || c.Ingest.ImagePlotRight > 1 {
		return fmt.Errorf("image plot left/right must satisfy 0 <= left < right <= 1")
	}
	if c.Ingest.ImagePlotTop < 0 || c.Ingest.ImagePlotTop >= c.Ingest.ImagePlotBottom || c.Ingest.ImagePlotBottom > 1 {
		return fmt.Errorf("image plot top/bottom must satisfy 0 <= top < bottom <= 1")
	}
	if c.Ingest.ImageVisibleMinNm >= c.Ingest.ImageVisibleMaxNm || c.Ingest.ImageWideMinNm >= c.Ingest.ImageWideMaxNm {
		return fmt.Errorf("image wavelength ranges must have min below max")
	}
	if c.Features.PeakDistanceNm < 0 || c.Ingest.CSVPeakDistanceNm < 0 || c.Matching.PeakDistanceNm < 0 {
		return fmt.Errorf("peak distances cannot be negative")
	}
	if c.Matching.PeakThreshold < 0 {
		return fmt.Errorf("matching peak threshold cannot be negative")
	}
	if c.Matching.PeakToleranceNm <= 0 {
		return fmt.Errorf("peak tolerance must be positive")
	}
	if c.Matching.ConfidenceCap <= 0 || c.Matching.ConfidenceCap > 1 {
		return fmt.Errorf("confidence cap must be in (0, 1]")
	}
	if c.Matching.SimilarityCap <= 0 || c.Matching.SimilarityCap > 1 {
		return fmt.Errorf("similarity cap must be in (0, 1]")
	}
	if c.Matching.ConfidenceJitter < 0 || c.Matching.SimilarityJitter < 0 {
		return fmt.Errorf("jitter cannot be negative")
	}
	if c.Curve.WindowNm <= 0 || c.Curve.PeakWindowNm <= 0 {
		return fmt.Errorf("curve windows must be positive")
	}
	if c.Classifier.K <= 0 {
		return fmt.Errorf("classifier k must be positive")
	}
	if c.Analysis.BatchConcurrency <= 0 {
		return fmt.Errorf("batch concurrency must be positive")
	}
	if c.Analysis.FileTimeout <= 0 {
		return fmt.Errorf("file timeout must be positive")
	}
	if c.Stream.Interval <= 0 {
		return fmt.Errorf("stream interval must be positive")
	}
	if c.Stream.History <= 0 {
		return fmt.Errorf("stream history must be positive")
	}
	return nil
}

// IngestOptions converts the ingest section into loader options.
func (c *Config) IngestOptions() ingest.Options {
	opts := ingest.DefaultOptions()
	opts.MaxBytes = c.Ingest.MaxUploadBytes
	opts.CSV.PeakThresholdRatio = c.Ingest.CSVPeakThresholdRatio
	opts.CSV.PeakDistanceNm = c.Ingest.CSVPeakDistanceNm

	opts.Image.SampleColumns = c.Ingest.ImageSampleColumns
	opts.Image.PeakThresholdRatio = c.Ingest.ImagePeakThresholdRatio
	opts.Image.MaxDimension = c.Ingest.ImageMaxDimension
	opts.Image.PlotLeft = c.Ingest.ImagePlotLeft
	opts.Image.PlotRight = c.Ingest.ImagePlotRight
	opts.Image.PlotTop = c.Ingest.ImagePlotTop
	opts.Image.PlotBottom = c.Ingest.ImagePlotBottom
	opts.Image.VisibleRange = [2]float64{c.Ingest.ImageVisibleMinNm, c.Ingest.ImageVisibleMaxNm}
	opts.Image.WideRange = [2]float64{c.Ingest.ImageWideMinNm, c.Ingest.ImageWideMaxNm}
	opts.Image.BaseConfidence = c.Ingest.ImageBaseConfidence
	opts.Image.AxisBonus = c.Ingest.ImageAxisBonus
	opts.Image.SignalBonus = c.Ingest.ImageSignalBonus
	opts.Image.SignalVarianceMin = c.Ingest.ImageSignalVarianceMin
	detector := ingest.DefaultAxisDetector()
	detector.DarkThreshold = uint8(c.Ingest.ImageDarkThreshold)
	opts.Image.Detector = detector
	return opts
}

func (c *Config) FeatureOptions() spectral.FeatureOptions {
	return spectral.FeatureOptions{
		PeakThreshold:  c.Features.PeakThreshold,
		PeakDistanceNm: c.Features.PeakDistanceNm,
	}
}

// MatcherSettings builds matcher settings. noise is dropped when the
// configuration asks for deterministic output.
func (c *Config) MatcherSettings(noise matcher.NoiseSource) matcher.Settings {
	settings := matcher.Settings{
		Scorer:           matcher.PeakScorer{ToleranceNm: c.Matching.PeakToleranceNm},
		PeakThreshold:    c.Matching.PeakThreshold,
		PeakDistanceNm:   c.Matching.PeakDistanceNm,
		ConfidenceCap:    c.Matching.ConfidenceCap,
		SimilarityCap:    c.Matching.SimilarityCap,
		ConfidenceJitter: c.Matching.ConfidenceJitter,
		SimilarityJitter: c.Matching.SimilarityJitter,
	}
	if !c.Matching.Deterministic {
		settings.Noise = noise
	}
	return settings
}

func (c *Config) CurveScorer() matcher.CurveScorer {
	return matcher.CurveScorer{
		WindowNm:          c.Curve.WindowNm,
		PeakWindowNm:      c.Curve.PeakWindowNm,
		PeakMinAbsorbance: c.Curve.PeakMinAbsorbance,
	}
}
