package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"microplastic-id/analysis"
)

var (
	analyzeHistory bool
	analyzeExplain bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE...",
	Short: "Identify microplastics in CSV spectra or spectrum images",
	Long: `Analyze one or more spectra. CSV files need wavelength and absorbance
columns; images are read as plots of absorbance against wavelength.

Examples:
  spectool analyze sample.csv
  spectool analyze --deterministic -o json scans/*.png
  spectool analyze --history sample.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeHistory, "history", false, "record results in the history store (DB_TYPE)")
	analyzeCmd.Flags().BoolVar(&analyzeExplain, "explain", false, "add a generated narrative when GEMINI_API_KEY is set")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	uploads := make([]analysis.Upload, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to read %s: %w", path, err)
		}
		uploads = append(uploads, analysis.Upload{Filename: filepath.Base(path), Data: data})
	}

	service, cleanup, err := buildService(ctx, analyzeHistory, analyzeExplain)
	if err != nil {
		return err
	}
	defer cleanup()

	items, err := service.AnalyzeBatch(ctx, uploads)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		return printJSON(out, items)
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		if item.Result == nil {
			rows = append(rows, []string{item.Source, "error: " + item.Error, "", "", "", "", ""})
			continue
		}
		r := item.Result
		classified := "-"
		if len(r.Classification) > 0 {
			classified = r.Classification[0].Label
		}
		rows = append(rows, []string{
			item.Source,
			r.Prediction.Match,
			r.Prediction.Polymer,
			percent(r.CalibratedConfidence),
			percent(r.Prediction.Similarity),
			formatPeaks(r.ObservedPeaks),
			classified,
		})
	}
	if err := printTable(out, []string{"FILE", "MATCH", "POLYMER", "CONFIDENCE", "SIMILARITY", "PEAKS (nm)", "CLASSIFIER"}, rows); err != nil {
		return err
	}

	for _, item := range items {
		if item.Result == nil {
			continue
		}
		fmt.Fprintf(out, "\n%s\n", item.Source)
		for _, line := range item.Result.Explanation {
			fmt.Fprintf(out, "  - %s\n", line)
		}
	}
	return nil
}
