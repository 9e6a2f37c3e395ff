package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"microplastic-id/spectral"
)

// FileKind identifies the ingestion path for an uploaded artifact.
type FileKind string

const (
	KindCSV   FileKind = "csv"
	KindImage FileKind = "image"
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// DetectFileType picks the ingestion path from the file extension, falling
// back to the declared content type.
func DetectFileType(filename, contentType string) (FileKind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".csv":
		return KindCSV, nil
	case imageExtensions[ext]:
		return KindImage, nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		switch {
		case mediaType == "text/csv" || mediaType == "application/csv":
			return KindCSV, nil
		case strings.HasPrefix(mediaType, "image/"):
			return KindImage, nil
		}
	}

	return "", newIngestError(ErrCodeUnsupportedFile, filename,
		fmt.Sprintf("unsupported file type (extension %q, content type %q)", ext, contentType), nil)
}

// Options bundles the per-path ingestion settings.
type Options struct {
	CSV   CSVOptions
	Image ImageOptions
	// MaxBytes rejects larger artifacts with FILE_TOO_LARGE; zero means unlimited.
	MaxBytes int64
}

func DefaultOptions() Options {
	return Options{
		CSV:      DefaultCSVOptions(),
		Image:    DefaultImageOptions(),
		MaxBytes: 32 << 20,
	}
}

// Analysis is the unified ingestion result for one artifact.
type Analysis struct {
	Source               string          `json:"source"`
	Kind                 FileKind        `json:"kind"`
	Curve                spectral.Curve  `json:"curve"`
	Peaks                []spectral.Peak `json:"peaks"`
	ExtractionConfidence float64         `json:"extractionConfidence"`
	Dataset              *Dataset        `json:"dataset,omitempty"`
	Image                *ImageAnalysis  `json:"image,omitempty"`
}

// PeakWavelengths lists the detected peak positions.
func (a *Analysis) PeakWavelengths() []float64 {
	return spectral.Wavelengths(a.Peaks)
}

// CheckSize fails with FILE_TOO_LARGE when size exceeds maxBytes. Zero
// maxBytes means unlimited.
func CheckSize(source string, size, maxBytes int64) error {
	if maxBytes > 0 && size > maxBytes {
		return newIngestError(ErrCodeFileTooLarge, source,
			fmt.Sprintf("file exceeds the %d byte upload limit", maxBytes), nil)
	}
	return nil
}

// ReadAll reads r in full. Content past maxBytes is never truncated silently:
// the read stops one byte over the limit and reports FILE_TOO_LARGE.
func ReadAll(r io.Reader, source string, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", source, err)
	}
	if err := CheckSize(source, int64(len(raw)), maxBytes); err != nil {
		return nil, err
	}
	return raw, nil
}

// Load reads one artifact and runs the matching ingestion path.
func Load(ctx context.Context, filename, contentType string, r io.Reader, opts Options) (*Analysis, error) {
	kind, err := DetectFileType(filename, contentType)
	if err != nil {
		return nil, err
	}

	raw, err := ReadAll(r, filename, opts.MaxBytes)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch kind {
	case KindCSV:
		dataset, err := ParseCSV(string(raw), filename, opts.CSV)
		if err != nil {
			return nil, err
		}
		return &Analysis{
			Source:               filename,
			Kind:                 KindCSV,
			Curve:                dataset.Curve,
			Peaks:                dataset.Peaks,
			ExtractionConfidence: dataset.Confidence(),
			Dataset:              dataset,
		}, nil
	default:
		img, err := DecodeImage(bytes.NewReader(raw), filename)
		if err != nil {
			return nil, err
		}
		result, err := AnalyzeImage(img, filename, opts.Image)
		if err != nil {
			return nil, err
		}
		return &Analysis{
			Source:               filename,
			Kind:                 KindImage,
			Curve:                result.Curve,
			Peaks:                result.Peaks,
			ExtractionConfidence: result.Confidence,
			Image:                result,
		}, nil
	}
}
