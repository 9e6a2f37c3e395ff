package ingest

import (
	"fmt"

	"microplastic-id/spectral"
)

// DefaultLibraryPeakThreshold is the absolute absorbance a library sample's
// local maximum must exceed to be recorded as a characteristic peak.
const DefaultLibraryPeakThreshold = 0.5

// LibrarySample is one reference spectrum from a wide-format library file.
type LibrarySample struct {
	Name  string         `json:"name"`
	Type  string         `json:"type"`
	Curve spectral.Curve `json:"curve"`
	Peaks []float64      `json:"peaks"`
}

// ParseLibraryCSV reads a wide-format reference library: one sample per row
// laid out as name,type,w1,a1,w2,a2,... The header row is skipped. Pairs that
// fail to parse are ignored; rows without any valid pair are dropped.
func ParseLibraryCSV(content, sourceName string, peakThreshold float64) ([]LibrarySample, error) {
	lines := splitLines(content)
	if len(lines) < 2 {
		return nil, newIngestError(ErrCodeEmptyDataset, sourceName, "library needs a header and at least one sample row", nil)
	}

	var samples []LibrarySample
	for i, line := range lines[1:] {
		if line == "" {
			continue
		}
		values := splitRow(line)

		name := field(values, 0)
		if name == "" {
			name = fmt.Sprintf("Sample %d", i+1)
		}
		kind := field(values, 1)
		if kind == "" {
			kind = "Unknown"
		}

		var points spectral.Curve
		for j := 2; j+1 < len(values); j += 2 {
			wavelength, ok := parseField(values, j)
			if !ok {
				continue
			}
			absorbance, ok := parseField(values, j+1)
			if !ok {
				continue
			}
			points = append(points, spectral.Point{Wavelength: wavelength, Absorbance: max(absorbance, 0)})
		}
		if len(points) == 0 {
			continue
		}

		curve := normaliseCurve(points)
		peaks := spectral.FindPeaks(curve, peakThreshold, 0)
		samples = append(samples, LibrarySample{
			Name:  name,
			Type:  kind,
			Curve: curve,
			Peaks: spectral.Wavelengths(peaks),
		})
	}

	if len(samples) == 0 {
		return nil, newIngestError(ErrCodeEmptyDataset, sourceName, "no valid library samples", nil)
	}
	return samples, nil
}
