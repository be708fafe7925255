// Package terminal renders detection reports for humans.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	ghio "github.com/hed1ad/ghostml/pkg/io"
	"github.com/hed1ad/ghostml/pkg/records"
)

const (
	lineWidth = 72
	keyWidth  = 24
)

// Writer prints a summary followed by the flagged records, or every record
// when Verbose is set.
type Writer struct {
	w       io.Writer
	NoColor bool
	Verbose bool

	bold, dim, red, green, yellow *color.Color
}

// NewWriter creates a terminal writer on w.
func NewWriter(w io.Writer, noColor, verbose bool) *Writer {
	tw := &Writer{
		w:       w,
		NoColor: noColor,
		Verbose: verbose,
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
		red:     color.New(color.FgRed, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow),
	}
	if noColor {
		for _, c := range []*color.Color{tw.bold, tw.dim, tw.red, tw.green, tw.yellow} {
			c.DisableColor()
		}
	} else {
		for _, c := range []*color.Color{tw.bold, tw.dim, tw.red, tw.green, tw.yellow} {
			c.EnableColor()
		}
	}
	return tw
}

// Write implements io.Writer.
func (t *Writer) Write(report *ghio.Report) error {
	sep := strings.Repeat("─", lineWidth)
	anomalies := records.CountAnomalies(report.Records)

	fmt.Fprintf(t.w, "\n%s\n", t.dim.Sprint(sep))
	fmt.Fprintf(t.w, "  %s\n", t.bold.Sprint("GHOSTML DETECTION RESULTS"))
	fmt.Fprintf(t.w, "  %d records  ·  %d anomalies\n", len(report.Records), anomalies)
	fmt.Fprintf(t.w, "%s\n", t.dim.Sprint(sep))

	t.printDetectors(report)

	if report.Rejected {
		fmt.Fprintf(t.w, "\n  %s %s\n", t.yellow.Sprint("⚠"), report.Message)
		return nil
	}

	if len(report.Breakpoints) > 0 {
		fmt.Fprintf(t.w, "\n  breakpoints: %v\n", report.Breakpoints)
	}

	shown := report.Records
	title := "Anomalies"
	if t.Verbose {
		title = "Records"
	} else {
		shown = flagged(report.Records)
	}

	if len(shown) == 0 {
		fmt.Fprintf(t.w, "\n  %s No anomalies found.\n", t.green.Sprint("✔"))
	} else {
		fmt.Fprintf(t.w, "\n%s\n", sectionHeader(title))
		for _, r := range shown {
			t.printRecord(r)
		}
	}

	fmt.Fprintf(t.w, "\n%s\n  %s\n", t.dim.Sprint(sep), report.Message)
	return nil
}

func (t *Writer) printDetectors(report *ghio.Report) {
	parts := make([]string, 0, len(report.TestsRun))
	for _, name := range report.Detectors() {
		if report.TestsRun[name] == 1 {
			parts = append(parts, t.green.Sprint(name))
		} else {
			parts = append(parts, t.dim.Sprint(name+" (skipped)"))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(t.w, "  detectors: %s\n", strings.Join(parts, ", "))
	}
}

func (t *Writer) printRecord(r records.LabeledRecord) {
	mark := "  "
	score := fmt.Sprintf("%10.4f", r.AnomalyScore)
	if r.IsAnomaly {
		mark = t.red.Sprint("● ")
		score = t.red.Sprint(score)
	}
	fmt.Fprintf(t.w, "  %s%-*s %s\n", mark, keyWidth, truncate(r.Key, keyWidth), score)
}

func flagged(rs []records.LabeledRecord) []records.LabeledRecord {
	var out []records.LabeledRecord
	for _, r := range rs {
		if r.IsAnomaly {
			out = append(out, r)
		}
	}
	return out
}

func sectionHeader(title string) string {
	prefix := "── " + title + " "
	remaining := max(lineWidth-utf8.RuneCountInString(prefix), 0)
	return prefix + strings.Repeat("─", remaining)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
