package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hed1ad/ghostml/pkg/config"
	"github.com/hed1ad/ghostml/pkg/logging"
)

var (
	flagConfig    string
	flagFormat    string
	flagOutput    string
	flagNoColor   bool
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "ghostml",
	Short: "Ensemble anomaly detection for tabular data",
	Long: `ghostml flags anomalous records by running several unsupervised outlier
detectors, combining their scores and applying an adaptive threshold driven by
a sensitivity score and a cap on the fraction of anomalies.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "terminal", "Output format (terminal, json, csv, msgpack)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config when given. A missing flag yields an empty file.
func loadConfig() (config.File, error) {
	if flagConfig == "" {
		return config.File{}, nil
	}
	return config.Load(flagConfig)
}

// newLogger builds the logger on stderr. Flags win over the config file
// only when set explicitly.
func newLogger(cmd *cobra.Command, file config.File) (*slog.Logger, error) {
	level, format := flagLogLevel, flagLogFormat
	if !cmd.Flags().Changed("log-level") && file.LogLevel != "" {
		level = file.LogLevel
	}
	if !cmd.Flags().Changed("log-format") && file.LogFormat != "" {
		format = file.LogFormat
	}
	return logging.New(cmd.ErrOrStderr(), level, format)
}
