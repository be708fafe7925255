package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	ghio "github.com/hed1ad/ghostml/pkg/io"
	"github.com/hed1ad/ghostml/pkg/io/csv"
	"github.com/hed1ad/ghostml/pkg/io/json"
	"github.com/hed1ad/ghostml/pkg/io/msgpack"
	"github.com/hed1ad/ghostml/pkg/io/terminal"
)

// createOutput opens the --output file.
var createOutput = func(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

func newWriter(w io.Writer, verbose bool) (ghio.Writer, error) {
	switch strings.ToLower(flagFormat) {
	case "json":
		return json.NewWriter(w, json.WithIndent(true)), nil
	case "csv":
		return csv.NewWriter(w), nil
	case "msgpack":
		return msgpack.NewWriter(w), nil
	case "terminal", "":
		// color.NoColor is set when stdout is not a terminal or NO_COLOR is set.
		noColor := flagNoColor || color.NoColor || flagOutput != ""
		return terminal.NewWriter(w, noColor, verbose), nil
	}
	return nil, fmt.Errorf("unknown output format %q", flagFormat)
}

// writeOutput sends report to --output, or to stdout when unset. A failed
// close of the output file is reported.
func writeOutput(stdout io.Writer, report *ghio.Report, verbose bool) (err error) {
	writer, err := newWriter(stdout, verbose)
	if err != nil {
		return err
	}
	if flagOutput == "" {
		return writer.Write(report)
	}

	f, err := createOutput(flagOutput)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", cerr)
		}
	}()

	writer, err = newWriter(f, verbose)
	if err != nil {
		return err
	}
	return writer.Write(report)
}
