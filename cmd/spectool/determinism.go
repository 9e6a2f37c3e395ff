package main

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var determinismRuns int

var determinismCmd = &cobra.Command{
	Use:   "determinism FILE",
	Short: "Check that repeated analysis of a file gives identical output",
	Long: `Analyse the same file several times with jitter disabled and compare the
feature vectors, matches and classifier labels of every run against the first.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeterminism,
}

func init() {
	determinismCmd.Flags().IntVar(&determinismRuns, "runs", 5, "number of repeated analyses")
	rootCmd.AddCommand(determinismCmd)
}

func runDeterminism(cmd *cobra.Command, args []string) error {
	if determinismRuns < 2 {
		return fmt.Errorf("need at least 2 runs, got %d", determinismRuns)
	}
	cfg.Matching.Deterministic = true

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", args[0], err)
	}
	name := filepath.Base(args[0])

	service, cleanup, err := buildService(cmd.Context(), false, false)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	first, err := service.AnalyzeFile(cmd.Context(), name, "", bytes.NewReader(data))
	if err != nil {
		return err
	}

	identical := true
	maxDiff := 0.0
	for run := 2; run <= determinismRuns; run++ {
		result, err := service.AnalyzeFile(cmd.Context(), name, "", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("run %d failed: %w", run, err)
		}

		for i := range first.FeatureVector {
			diff := math.Abs(first.FeatureVector[i] - result.FeatureVector[i])
			maxDiff = math.Max(maxDiff, diff)
			if diff > 1e-12 {
				identical = false
				fmt.Fprintf(out, "feature %d differs in run %d: %.15f vs %.15f\n", i, run, first.FeatureVector[i], result.FeatureVector[i])
			}
		}
		if result.Prediction.Match != first.Prediction.Match || result.CalibratedConfidence != first.CalibratedConfidence {
			identical = false
			fmt.Fprintf(out, "match differs in run %d: %s (%.4f) vs %s (%.4f)\n", run,
				first.Prediction.Match, first.CalibratedConfidence, result.Prediction.Match, result.CalibratedConfidence)
		}
		if len(result.Classification) > 0 && len(first.Classification) > 0 &&
			result.Classification[0].Label != first.Classification[0].Label {
			identical = false
			fmt.Fprintf(out, "classifier label differs in run %d: %s vs %s\n", run,
				first.Classification[0].Label, result.Classification[0].Label)
		}
	}

	fmt.Fprintf(out, "%d runs of %s: match %s, max feature difference %e\n",
		determinismRuns, name, first.Prediction.Match, maxDiff)
	if !identical {
		return fmt.Errorf("analysis of %s is not deterministic", name)
	}
	fmt.Fprintln(out, "all runs identical")
	return nil
}
