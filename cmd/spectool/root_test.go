package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microplastic-id/config"
)

func TestBindFlagsOnlyOverridesChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "spectool"}
	cmd.Flags().Int("k", 3, "")
	cmd.Flags().Bool("deterministic", false, "")
	cmd.Flags().String("model", "data/prototypes.json", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--k", "7", "--deterministic"}))

	v := config.NewViper()
	v.SetDefault("classifier.model_path", "from-file.json")
	require.NoError(t, bindFlags(cmd, v))

	loaded, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Classifier.K)
	assert.True(t, loaded.Matching.Deterministic)
	assert.Equal(t, "from-file.json", loaded.Classifier.ModelPath)
}

func TestOutputHelpers(t *testing.T) {
	assert.Equal(t, "-", formatPeaks(nil))
	assert.Equal(t, "750, 500.5", formatPeaks([]float64{750, 500.5}))
	assert.Equal(t, "54.0%", percent(0.54))

	var buf bytes.Buffer
	require.NoError(t, printTable(&buf, []string{"label", "count"}, [][]string{{"PET", "2"}, {"Polystyrene", "10"}}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Index(lines[0], "count"), strings.Index(lines[2], "10"))
}
