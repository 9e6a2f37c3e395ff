package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"microplastic-id/analysis"
	"microplastic-id/ingest"
	"microplastic-id/matcher"
)

var (
	buildLibraryPath string
	buildFromCatalog bool
	buildOut         string
)

var buildModelCmd = &cobra.Command{
	Use:   "build-model",
	Short: "Build a prototype model for the nearest-neighbour classifier",
	Long: `Build prototypes from a wide-format reference library, from spectra
synthesised for every catalog material, or both, and write them as JSON.

Examples:
  spectool build-model --library references.csv
  spectool build-model --from-catalog --out data/prototypes.json`,
	Args: cobra.NoArgs,
	RunE: runBuildModel,
}

var modelInfoCmd = &cobra.Command{
	Use:   "model-info",
	Short: "Summarise the prototype model in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := analysis.LoadCatalog(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		classifier, err := analysis.LoadClassifier(cmd.Context(), cfg, catalog)
		if err != nil {
			return err
		}

		stats := classifier.Stats()
		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), stats)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "prototypes: %d  labels: %d  features: %d  k: %d  example: %t\n\n",
			stats.PrototypeCount, stats.LabelCount, stats.FeatureCount, stats.K, stats.UsingExample)
		rows := make([][]string, 0, len(stats.Labels))
		for _, label := range stats.Labels {
			rows = append(rows, []string{label.Label, label.Polymer, strconv.Itoa(label.Prototypes)})
		}
		return printTable(cmd.OutOrStdout(), []string{"LABEL", "POLYMER", "PROTOTYPES"}, rows)
	},
}

func init() {
	buildModelCmd.Flags().StringVar(&buildLibraryPath, "library", "", "wide-format library CSV (name,type,w1,a1,...)")
	buildModelCmd.Flags().BoolVar(&buildFromCatalog, "from-catalog", false, "add one synthesised prototype per catalog material")
	buildModelCmd.Flags().StringVar(&buildOut, "out", "", "output path (default is the configured model path)")
	rootCmd.AddCommand(buildModelCmd)
	rootCmd.AddCommand(modelInfoCmd)
}

func runBuildModel(cmd *cobra.Command, args []string) error {
	if buildLibraryPath == "" && !buildFromCatalog {
		return fmt.Errorf("nothing to build: pass --library and/or --from-catalog")
	}

	var prototypes []matcher.Prototype
	if buildFromCatalog {
		catalog, err := analysis.LoadCatalog(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		prototypes = append(prototypes, matcher.PrototypesFromCatalog(catalog)...)
	}

	if buildLibraryPath != "" {
		content, err := os.ReadFile(buildLibraryPath)
		if err != nil {
			return fmt.Errorf("unable to read library: %w", err)
		}
		source := filepath.Base(buildLibraryPath)
		samples, err := ingest.ParseLibraryCSV(string(content), source, cfg.Ingest.LibraryPeakThreshold)
		if err != nil {
			return err
		}
		prototypes = append(prototypes, matcher.PrototypesFromLibrary(samples, source, cfg.FeatureOptions())...)
	}

	if len(prototypes) == 0 {
		return fmt.Errorf("no prototypes were created")
	}

	out := buildOut
	if out == "" {
		out = cfg.Classifier.ModelPath
	}
	classifier, err := matcher.NewClassifier(prototypes, cfg.Classifier.K, out)
	if err != nil {
		return err
	}
	if err := classifier.SavePrototypesToFile(); err != nil {
		return err
	}

	stats := classifier.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d prototypes (%d labels) to %s\n", stats.PrototypeCount, stats.LabelCount, out)
	return nil
}
