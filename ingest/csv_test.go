package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVSampleFile(t *testing.T) {
	t.Parallel()

	dataset, err := ParseCSV(SampleCSV(), "sample.csv", DefaultCSVOptions())
	require.NoError(t, err)

	meta := dataset.Metadata
	assert.Equal(t, 9, meta.TotalPoints)
	assert.Equal(t, [2]float64{400, 800}, meta.WavelengthRange)
	assert.Equal(t, 0.45, meta.MaxAbsorbance)
	assert.Equal(t, []float64{500, 750}, meta.PeakWavelengths)
	assert.Equal(t, "PET Fragment", meta.Type)
	assert.Equal(t, "Polyethylene Terephthalate", meta.Polymer)
	assert.Equal(t, "Clear", meta.Color)
	assert.Equal(t, "sample.csv", meta.Source)
	assert.Equal(t, 0.6, dataset.Confidence())
	require.NoError(t, dataset.Curve.Validate())
}

func TestParseCSVFuzzyHeaders(t *testing.T) {
	t.Parallel()

	content := "Wave (nm),Abs,Material\n400,0.1,PE Film\n410,0.4,ignored\n420,0.2,ignored\n"
	dataset, err := ParseCSV(content, "fuzzy.csv", DefaultCSVOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, dataset.Metadata.TotalPoints)
	assert.Equal(t, "PE Film", dataset.Metadata.Type)
	assert.Equal(t, []float64{410}, dataset.Metadata.PeakWavelengths)
}

func TestParseCSVMissingAbsorbanceColumn(t *testing.T) {
	t.Parallel()

	_, err := ParseCSV("wavelength,comment\n400,ok\n", "bad.csv", DefaultCSVOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, MissingColumnError))
	assert.Equal(t, ErrCodeMissingColumn, ErrorCode(err))
	assert.Contains(t, err.Error(), "bad.csv")
}

func TestParseCSVMissingWavelengthColumn(t *testing.T) {
	t.Parallel()

	_, err := ParseCSV("absorbance,comment\n0.4,ok\n", "bad.csv", DefaultCSVOptions())
	assert.ErrorIs(t, err, MissingColumnError)
}

func TestParseCSVEmptyDataset(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"blank":       "   \n",
		"header only": "wavelength,absorbance\n",
		"all invalid": "wavelength,absorbance\nabc,0.1\n400,n/a\n\n",
	}
	for name, content := range cases {
		_, err := ParseCSV(content, name, DefaultCSVOptions())
		assert.ErrorIs(t, err, EmptyDatasetError, name)
		assert.NotErrorIs(t, err, MissingColumnError, name)
	}
}

func TestParseCSVSkipsInvalidRowsAndNormalisesOrder(t *testing.T) {
	t.Parallel()

	content := "wavelength,absorbance\r\n" +
		"450,0.2\r\n" +
		"bad,0.9\r\n" +
		"400,0.1\r\n" +
		"450,0.8\r\n" +
		"500,0.3\r\n" +
		"550,NaN\r\n"
	dataset, err := ParseCSV(content, "messy.csv", DefaultCSVOptions())
	require.NoError(t, err)

	require.Len(t, dataset.Curve, 3)
	assert.Equal(t, 400.0, dataset.Curve[0].Wavelength)
	assert.Equal(t, 0.2, dataset.Curve[1].Absorbance, "first occurrence of a wavelength wins")
	assert.Equal(t, [2]float64{400, 500}, dataset.Metadata.WavelengthRange)
	assert.Equal(t, 0.3, dataset.Metadata.MaxAbsorbance)
}

func TestParseCSVClampsNegativeAbsorbance(t *testing.T) {
	t.Parallel()

	content := "wavelength,absorbance\n400,-0.05\n450,0.4\n500,-0.2\n"
	dataset, err := ParseCSV(content, "baseline.csv", DefaultCSVOptions())
	require.NoError(t, err)

	require.NoError(t, dataset.Curve.Validate())
	assert.Equal(t, 0.0, dataset.Curve[0].Absorbance)
	assert.Equal(t, 0.0, dataset.Curve[2].Absorbance)
	assert.Equal(t, 2, dataset.Metadata.ClampedPoints)
	assert.Equal(t, []float64{450}, dataset.Metadata.PeakWavelengths)
}

func TestParseCSVMetadataFromFirstRowOnly(t *testing.T) {
	t.Parallel()

	content := "wavelength,absorbance,type,polymer,colour\n400,0.1,PP Piece,Polypropylene,Red\n410,0.2,PS Foam,Polystyrene,White\n"
	dataset, err := ParseCSV(content, "meta.csv", DefaultCSVOptions())
	require.NoError(t, err)

	assert.Equal(t, "PP Piece", dataset.Metadata.Type)
	assert.Equal(t, "Polypropylene", dataset.Metadata.Polymer)
	assert.Equal(t, "Red", dataset.Metadata.Color)
}

func TestParseLibraryCSV(t *testing.T) {
	t.Parallel()

	content := "name,type,w1,a1,w2,a2,w3,a3\n" +
		"PET A,PET,400,0.2,450,0.7,500,0.3\n" +
		",,400,0.1,oops,0.5\n" +
		"Empty,PE,x,y\n"
	samples, err := ParseLibraryCSV(content, "library.csv", DefaultLibraryPeakThreshold)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "PET A", samples[0].Name)
	assert.Equal(t, "PET", samples[0].Type)
	assert.Len(t, samples[0].Curve, 3)
	assert.Equal(t, []float64{450}, samples[0].Peaks)

	assert.Equal(t, "Sample 2", samples[1].Name)
	assert.Equal(t, "Unknown", samples[1].Type)
	assert.Len(t, samples[1].Curve, 1)
	assert.Empty(t, samples[1].Peaks)
}

func TestParseLibraryCSVRequiresSamples(t *testing.T) {
	t.Parallel()

	_, err := ParseLibraryCSV("name,type\n", "library.csv", DefaultLibraryPeakThreshold)
	assert.ErrorIs(t, err, EmptyDatasetError)

	_, err = ParseLibraryCSV("name,type\nA,B,bad,bad\n", "library.csv", DefaultLibraryPeakThreshold)
	assert.ErrorIs(t, err, EmptyDatasetError)
}
