package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"microplastic-id/analysis"
	"microplastic-id/ingest"
	"microplastic-id/matcher"
)

var catalogExport string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the reference catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := analysis.LoadCatalog(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if catalogExport != "" {
			if err := matcher.SaveCatalogFile(catalogExport, catalog); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d materials to %s\n", catalog.Len(), catalogExport)
		}

		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), catalog.Materials())
		}

		rows := make([][]string, 0, catalog.Len())
		for _, m := range catalog.Materials() {
			rows = append(rows, []string{
				m.Type, m.Polymer, m.Color, m.Colorant,
				formatPeaks(m.PeakWavelengths),
				strings.Join(m.Characteristics, ", "),
			})
		}
		return printTable(cmd.OutOrStdout(), []string{"TYPE", "POLYMER", "COLOR", "COLORANT", "PEAKS (nm)", "CHARACTERISTICS"}, rows)
	},
}

var sampleCSVCmd = &cobra.Command{
	Use:   "sample-csv",
	Short: "Print an example spectrum CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), ingest.SampleCSV())
		return err
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogExport, "export", "", "also write the catalog as JSON to this path")
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(sampleCSVCmd)
}
