package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hed1ad/ghostml/pkg/config"
	"github.com/hed1ad/ghostml/pkg/ensemble"
	ghio "github.com/hed1ad/ghostml/pkg/io"
	"github.com/hed1ad/ghostml/pkg/records"
	"github.com/hed1ad/ghostml/pkg/timeseries"
)

// ErrAnomaliesFound is returned by detect --fail-on-anomaly when at least one
// record was flagged.
var ErrAnomaliesFound = errors.New("anomalies found")

var (
	flagSensitivity   float64
	flagMaxFraction   float64
	flagNeighbors     int
	flagFactors       []string
	flagDetectors     []string
	flagWorkers       int
	flagTimeout       time.Duration
	flagMode          string
	flagVerbose       bool
	flagFailOnAnomaly bool
)

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Flag anomalous records in a CSV, JSON, msgpack or pcap input",
	Long: `Detect reads records from a file (or standard input when the file is "-"
or omitted) and flags the anomalous ones.

Modes:
  multivariate  run the detector ensemble (default)
  single        single time series: changepoints only, nothing flagged
  multi         multiple time series: nothing flagged`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDetect,
}

func init() {
	defaults := ensemble.DefaultConfig()
	detectCmd.Flags().Float64Var(&flagSensitivity, "sensitivity", defaults.SensitivityScore, "Sensitivity score, 0 < x <= 100")
	detectCmd.Flags().Float64Var(&flagMaxFraction, "max-fraction", defaults.MaxFractionAnomalies, "Max fraction of anomalies, 0 < x <= 1")
	detectCmd.Flags().IntVar(&flagNeighbors, "neighbors", defaults.NNeighbors, "Starting neighborhood size for neighbor-based detectors")
	detectCmd.Flags().StringArrayVar(&flagFactors, "factor", nil, "Sensitivity factor override as name=value (repeatable)")
	detectCmd.Flags().StringSliceVar(&flagDetectors, "detectors", nil, "Detectors to run (comma-separated, default: cof,loci,copod)")
	detectCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Concurrent detector invocations (default: NumCPU)")
	detectCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "Per-invocation detector timeout (0 disables)")
	detectCmd.Flags().StringVar(&flagMode, "mode", "multivariate", "Detection mode (multivariate, single, multi)")
	detectCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Show every record, not only the anomalies")
	detectCmd.Flags().BoolVar(&flagFailOnAnomaly, "fail-on-anomaly", false, "Exit with code 1 if any record is flagged")

	detectCmd.Flags().StringVar(&flagInputFormat, "input-format", "", "Input format (csv, json, msgpack, pcap; default: from extension)")
	detectCmd.Flags().StringVar(&flagKeyColumn, "key-column", "", "CSV column holding record keys (default: row number)")
	detectCmd.Flags().BoolVar(&flagNoHeader, "no-header", false, "CSV input has no header row")
	detectCmd.Flags().StringVar(&flagInterface, "interface", "", "Capture packets live from this network interface")
	detectCmd.Flags().IntVar(&flagSnaplen, "snaplen", 65535, "Live capture snapshot length")
	detectCmd.Flags().IntVar(&flagPackets, "packets", 0, "Stop after this many packets (0: no limit)")
	detectCmd.Flags().DurationVar(&flagCaptureFor, "capture-for", 0, "Live capture duration")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	file, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, file)
	if err != nil {
		return err
	}

	cfg, err := requestConfig(cmd, file)
	if err != nil {
		return err
	}
	opts, err := pipelineOptions(cmd, file)
	if err != nil {
		return err
	}
	opts = append(opts, ensemble.WithLogger(logger))

	ctx, cancel := contextWithInterrupt()
	defer cancel()

	var path string
	if len(args) > 0 {
		path = args[0]
	}
	set, err := readRecords(ctx, path)
	if err != nil {
		return err
	}
	logger.Info("records loaded", "count", len(set), "mode", flagMode)

	report, err := detect(ctx, set, cfg, opts)
	if err != nil {
		return err
	}
	if report.Rejected {
		logger.Warn("request rejected", "message", report.Message)
	}

	if err := writeOutput(cmd.OutOrStdout(), report, flagVerbose); err != nil {
		return err
	}

	if flagFailOnAnomaly && records.CountAnomalies(report.Records) > 0 {
		return ErrAnomaliesFound
	}
	return nil
}

func detect(ctx context.Context, set records.RecordSet, cfg ensemble.Config, opts []ensemble.Option) (*ghio.Report, error) {
	switch strings.ToLower(flagMode) {
	case "multivariate", "":
		res, err := ensemble.New(opts...).DetectAnomalies(ctx, set, cfg)
		if err != nil {
			return nil, err
		}
		return ghio.FromEnsemble(res), nil
	case "single":
		res, err := timeseries.New().DetectSingle(ctx, set, cfg.SensitivityScore, cfg.MaxFractionAnomalies)
		if err != nil {
			return nil, err
		}
		return ghio.FromTimeSeries(res), nil
	case "multi":
		res, err := timeseries.New().DetectMulti(ctx, set, cfg.SensitivityScore, cfg.MaxFractionAnomalies, cfg.NNeighbors)
		if err != nil {
			return nil, err
		}
		return ghio.FromTimeSeries(res), nil
	}
	return nil, fmt.Errorf("unknown mode %q", flagMode)
}

// requestConfig layers defaults, the config file and explicitly set flags.
func requestConfig(cmd *cobra.Command, file config.File) (ensemble.Config, error) {
	cfg := file.Apply(ensemble.DefaultConfig())
	if cmd.Flags().Changed("sensitivity") {
		cfg.SensitivityScore = flagSensitivity
	}
	if cmd.Flags().Changed("max-fraction") {
		cfg.MaxFractionAnomalies = flagMaxFraction
	}
	if cmd.Flags().Changed("neighbors") {
		cfg.NNeighbors = flagNeighbors
	}
	for _, kv := range flagFactors {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return cfg, fmt.Errorf("invalid --factor %q, want name=value", kv)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid --factor %q: %w", kv, err)
		}
		cfg.SensitivityFactors[strings.TrimSpace(name)] = f
	}
	return cfg, nil
}

func pipelineOptions(cmd *cobra.Command, file config.File) ([]ensemble.Option, error) {
	if cmd.Flags().Changed("detectors") {
		file.Detectors = flagDetectors
	}
	if cmd.Flags().Changed("workers") {
		file.Workers = flagWorkers
	}
	if cmd.Flags().Changed("timeout") {
		d := config.Duration(flagTimeout)
		file.DetectorTimeout = &d
	}
	return file.Options()
}

func contextWithInterrupt() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
