package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"microplastic-id/config"
	"microplastic-id/utils"
)

var (
	configFile   string
	outputFormat string
	cfg          *config.Config
)

// flagKeys maps persistent flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"deterministic": "matching.deterministic",
	"k":             "classifier.k",
	"model":         "classifier.model_path",
	"catalog":       "matching.catalog_path",
}

var rootCmd = &cobra.Command{
	Use:   "spectool",
	Short: "Offline microplastic spectrum analysis",
	Long: `spectool runs the microplastic identification pipeline without the server.

It analyses CSV spectra and spectrum images, prints the reference catalog,
builds prototype models for the nearest-neighbour classifier and checks that
the pipeline is deterministic.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default is ./configs/mpid.yaml if present)")
	flags.StringVarP(&outputFormat, "output", "o", "table", "output format (table, json)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("deterministic", false, "disable confidence jitter")
	flags.Int("k", 3, "neighbours used by the classifier")
	flags.String("model", "data/prototypes.json", "prototype model path")
	flags.String("catalog", "", "reference catalog JSON (default is the built-in catalog)")
}

// initializeConfig loads the configuration with changed flags taking
// precedence over the file and MPID_ environment variables.
func initializeConfig(cmd *cobra.Command) error {
	v := config.NewViper()
	if err := bindFlags(cmd, v); err != nil {
		return err
	}

	loaded, err := config.LoadViper(v, configFile)
	if err != nil {
		return err
	}
	if loaded.LogLevel != "" {
		utils.SetLogLevel(loaded.LogLevel)
	}
	if outputFormat != "table" && outputFormat != "json" {
		return fmt.Errorf("unsupported output format %q", outputFormat)
	}
	cfg = loaded
	return nil
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}
	})
	return lastErr
}
