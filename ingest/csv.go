package ingest

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"microplastic-id/spectral"
)

var (
	wavelengthColumns = []string{"wavelength", "wave", "nm", "x"}
	absorbanceColumns = []string{"absorbance", "abs", "intensity", "y", "value"}
	typeColumns       = []string{"type", "material", "sample"}
	polymerColumns    = []string{"polymer", "plastic"}
	colorColumns      = []string{"color", "colour"}
)

// CSVOptions tunes peak detection on parsed files.
type CSVOptions struct {
	// PeakThresholdRatio is the fraction of the file's maximum absorbance a
	// local maximum must exceed.
	PeakThresholdRatio float64
	PeakDistanceNm     float64
}

func DefaultCSVOptions() CSVOptions {
	return CSVOptions{PeakThresholdRatio: 0.1}
}

// Metadata describes a parsed dataset.
type Metadata struct {
	Type            string     `json:"type,omitempty"`
	Polymer         string     `json:"polymer,omitempty"`
	Color           string     `json:"color,omitempty"`
	Source          string     `json:"source"`
	PeakWavelengths []float64  `json:"peakWavelengths"`
	TotalPoints     int        `json:"totalPoints"`
	WavelengthRange [2]float64 `json:"wavelengthRange"`
	MaxAbsorbance   float64    `json:"maxAbsorbance"`
	// ClampedPoints counts negative absorbances raised to zero.
	ClampedPoints int `json:"clampedPoints,omitempty"`
}

// Dataset is a spectral curve loaded from a tabular file.
type Dataset struct {
	Curve    spectral.Curve  `json:"data"`
	Peaks    []spectral.Peak `json:"peaks"`
	Metadata Metadata        `json:"metadata"`
}

// Confidence rates how much a dataset can be trusted as a reference sample.
func (d *Dataset) Confidence() float64 {
	if d.Metadata.TotalPoints > 50 {
		return 0.8
	}
	return 0.6
}

// ParseCSV reads a comma separated spectrum with a header row. Columns are
// resolved by case-insensitive substring match; descriptive metadata is taken
// from the first data row only. Rows with a non-numeric wavelength or
// absorbance are skipped and negative absorbances are clamped to zero, as in
// image extraction. Rows are returned sorted by wavelength and a repeated
// wavelength keeps its first occurrence.
func ParseCSV(content, sourceName string, opts CSVOptions) (*Dataset, error) {
	lines := splitLines(content)
	if len(lines) == 0 {
		return nil, newIngestError(ErrCodeEmptyDataset, sourceName, "file is empty", nil)
	}

	headers := splitRow(lines[0])
	for i := range headers {
		headers[i] = strings.ToLower(headers[i])
	}

	wavelengthIdx := findColumn(headers, wavelengthColumns)
	absorbanceIdx := findColumn(headers, absorbanceColumns)
	if wavelengthIdx == -1 {
		return nil, newIngestError(ErrCodeMissingColumn, sourceName, "no wavelength column in header", nil)
	}
	if absorbanceIdx == -1 {
		return nil, newIngestError(ErrCodeMissingColumn, sourceName, "no absorbance column in header", nil)
	}

	typeIdx := findColumn(headers, typeColumns)
	polymerIdx := findColumn(headers, polymerColumns)
	colorIdx := findColumn(headers, colorColumns)

	meta := Metadata{Source: sourceName}
	points := make(spectral.Curve, 0, len(lines)-1)

	for i, line := range lines[1:] {
		values := splitRow(line)
		wavelength, ok := parseField(values, wavelengthIdx)
		if !ok {
			continue
		}
		absorbance, ok := parseField(values, absorbanceIdx)
		if !ok {
			continue
		}
		if absorbance < 0 {
			absorbance = 0
			meta.ClampedPoints++
		}
		points = append(points, spectral.Point{Wavelength: wavelength, Absorbance: absorbance})

		if i == 0 {
			meta.Type = field(values, typeIdx)
			meta.Polymer = field(values, polymerIdx)
			meta.Color = field(values, colorIdx)
		}
	}

	if len(points) == 0 {
		return nil, newIngestError(ErrCodeEmptyDataset, sourceName, "no valid spectral rows", nil)
	}

	curve := normaliseCurve(points)
	meta.TotalPoints = len(curve)
	meta.WavelengthRange = curve.Range()
	meta.MaxAbsorbance = curve[0].Absorbance
	for _, p := range curve[1:] {
		if p.Absorbance > meta.MaxAbsorbance {
			meta.MaxAbsorbance = p.Absorbance
		}
	}

	peaks := spectral.FindPeaks(curve, meta.MaxAbsorbance*opts.PeakThresholdRatio, opts.PeakDistanceNm)
	spectral.SortByWavelength(peaks)
	meta.PeakWavelengths = spectral.Wavelengths(peaks)

	return &Dataset{Curve: curve, Peaks: peaks, Metadata: meta}, nil
}

func splitLines(content string) []string {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func splitRow(line string) []string {
	values := strings.Split(line, ",")
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return values
}

// findColumn returns the first header containing the earliest listed synonym.
func findColumn(headers []string, names []string) int {
	for _, name := range names {
		for idx, header := range headers {
			if strings.Contains(header, name) {
				return idx
			}
		}
	}
	return -1
}

func field(values []string, idx int) string {
	if idx < 0 || idx >= len(values) {
		return ""
	}
	return values[idx]
}

func parseField(values []string, idx int) (float64, bool) {
	raw := field(values, idx)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func normaliseCurve(points spectral.Curve) spectral.Curve {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Wavelength < points[j].Wavelength
	})
	out := points[:0]
	for i, p := range points {
		if i > 0 && p.Wavelength == out[len(out)-1].Wavelength {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SampleCSV returns a template file in the accepted format.
func SampleCSV() string {
	rows := []string{
		"wavelength,absorbance,type,polymer,color",
		"400,0.12,PET Fragment,Polyethylene Terephthalate,Clear",
		"450,0.15,PET Fragment,Polyethylene Terephthalate,Clear",
		"500,0.45,PET Fragment,Polyethylene Terephthalate,Clear",
		"550,0.32,PET Fragment,Polyethylene Terephthalate,Clear",
		"600,0.28,PET Fragment,Polyethylene Terephthalate,Clear",
		"650,0.18,PET Fragment,Polyethylene Terephthalate,Clear",
		"700,0.22,PET Fragment,Polyethylene Terephthalate,Clear",
		"750,0.35,PET Fragment,Polyethylene Terephthalate,Clear",
		"800,0.15,PET Fragment,Polyethylene Terephthalate,Clear",
	}
	return strings.Join(rows, "\n")
}
