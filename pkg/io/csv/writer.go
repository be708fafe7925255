package csv

import (
	"encoding/csv"
	"io"
	"strconv"

	ghio "github.com/hed1ad/ghostml/pkg/io"
)

// Writer renders a report as one CSV row per record: key, anomaly flag,
// ensemble score, then one score column per detector that ran.
type Writer struct {
	w *csv.Writer
}

// NewWriter creates a CSV writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// Write implements io.Writer.
func (w *Writer) Write(report *ghio.Report) error {
	var ran []string
	for _, name := range report.Detectors() {
		if report.TestsRun[name] == 1 {
			ran = append(ran, name)
		}
	}

	header := append([]string{"key", "is_anomaly", "anomaly_score"}, ran...)
	if err := w.w.Write(header); err != nil {
		return err
	}

	for _, r := range report.Records {
		row := []string{
			r.Key,
			strconv.FormatBool(r.IsAnomaly),
			formatFloat(r.AnomalyScore),
		}
		for _, name := range ran {
			row = append(row, formatFloat(r.RawScores[name]))
		}
		if err := w.w.Write(row); err != nil {
			return err
		}
	}

	w.w.Flush()
	return w.w.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
