package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hed1ad/ghostml/pkg/changepoint"
	"github.com/hed1ad/ghostml/pkg/encoding"
)

var (
	flagPenalty float64
	flagMinSize int
	flagJump    int
	flagColumns []int
)

type segmentResult struct {
	Records     int   `json:"records"`
	Breakpoints []int `json:"breakpoints"`
}

var segmentCmd = &cobra.Command{
	Use:   "segment [file]",
	Short: "Find changepoints in a series of records",
	Long: `Segment treats the records as a time series in input order and reports
the indices where its mean shifts. The last breakpoint is always the record count.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSegment,
}

func init() {
	segmentCmd.Flags().Float64Var(&flagPenalty, "penalty", 10, "Cost added per breakpoint")
	segmentCmd.Flags().IntVar(&flagMinSize, "min-size", 2, "Minimum segment length")
	segmentCmd.Flags().IntVar(&flagJump, "jump", 5, "Breakpoint candidate spacing")
	segmentCmd.Flags().IntSliceVar(&flagColumns, "columns", nil, "Zero-based value columns to use (default: all)")
	segmentCmd.Flags().StringVar(&flagInputFormat, "input-format", "", "Input format (csv, json, msgpack, pcap; default: from extension)")
	segmentCmd.Flags().StringVar(&flagKeyColumn, "key-column", "", "CSV column holding record keys (default: row number)")
	segmentCmd.Flags().BoolVar(&flagNoHeader, "no-header", false, "CSV input has no header row")
	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, args []string) error {
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

	matrix, _, err := encoding.Ordinal{}.Encode(set)
	if err != nil {
		return fmt.Errorf("encoding input: %w", err)
	}
	signal, err := selectColumns(matrix, flagColumns)
	if err != nil {
		return err
	}

	pelt := changepoint.NewPelt(changepoint.WithMinSize(flagMinSize), changepoint.WithJump(flagJump))
	bkps, err := pelt.Segment(ctx, signal, flagPenalty)
	if err != nil {
		return err
	}

	res := segmentResult{Records: len(set), Breakpoints: bkps}
	w := cmd.OutOrStdout()
	if strings.EqualFold(flagFormat, "json") {
		return json.NewEncoder(w).Encode(res)
	}
	fmt.Fprintf(w, "%d records, %d segments\n", res.Records, len(res.Breakpoints))
	fmt.Fprintf(w, "breakpoints: %v\n", res.Breakpoints)
	return nil
}

func selectColumns(matrix [][]float64, cols []int) ([][]float64, error) {
	if len(cols) == 0 {
		return matrix, nil
	}
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		out[i] = make([]float64, len(cols))
		for j, c := range cols {
			if c < 0 || c >= len(row) {
				return nil, fmt.Errorf("column %d out of range, records have %d values", c, len(row))
			}
			out[i][j] = row[c]
		}
	}
	return out, nil
}
