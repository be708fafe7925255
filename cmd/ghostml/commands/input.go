package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ghio "github.com/hed1ad/ghostml/pkg/io"
	"github.com/hed1ad/ghostml/pkg/io/csv"
	"github.com/hed1ad/ghostml/pkg/io/json"
	"github.com/hed1ad/ghostml/pkg/io/msgpack"
	"github.com/hed1ad/ghostml/pkg/io/pcap"
	"github.com/hed1ad/ghostml/pkg/records"
)

var (
	flagInputFormat string
	flagKeyColumn   string
	flagNoHeader    bool
	flagInterface   string
	flagSnaplen     int
	flagPackets     int
	flagCaptureFor  time.Duration
)

// inputFormat picks the decoder from --input-format or the file extension.
// Standard input defaults to CSV.
func inputFormat(path string) (string, error) {
	if flagInputFormat != "" {
		return strings.ToLower(flagInputFormat), nil
	}
	if path == "" || path == "-" {
		return "csv", nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return "csv", nil
	case ".json":
		return "json", nil
	case ".msgpack", ".mpk":
		return "msgpack", nil
	case ".pcap", ".pcapng", ".cap":
		return "pcap", nil
	}
	return "", fmt.Errorf("cannot infer input format of %s, use --input-format", path)
}

func openReader(path string) (ghio.Reader, error) {
	if flagInterface != "" {
		return pcap.NewLiveReader(flagInterface, flagSnaplen, true, time.Second, pcap.WithPacketLimit(flagPackets))
	}

	format, err := inputFormat(path)
	if err != nil {
		return nil, err
	}
	stdin := path == "" || path == "-"

	switch format {
	case "csv":
		opts := []csv.Option{csv.WithHeader(!flagNoHeader)}
		if flagKeyColumn != "" {
			opts = append(opts, csv.WithKeyColumn(flagKeyColumn))
		}
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			opts = append(opts, csv.WithComma('\t'))
		}
		if stdin {
			return csv.NewStreamReader(os.Stdin, opts...)
		}
		return csv.NewReader(path, opts...)
	case "json":
		if stdin {
			return json.NewStreamReader(os.Stdin), nil
		}
		return json.NewReader(path)
	case "msgpack":
		if stdin {
			return msgpack.NewStreamReader(os.Stdin), nil
		}
		return msgpack.NewReader(path)
	case "pcap":
		if stdin {
			return nil, fmt.Errorf("pcap input must be a file")
		}
		return pcap.NewFileReader(path, pcap.WithPacketLimit(flagPackets))
	}
	return nil, fmt.Errorf("unknown input format %q", format)
}

// readRecords loads every record from path, or from the live interface when
// --interface is set.
func readRecords(ctx context.Context, path string) (records.RecordSet, error) {
	r, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	if flagInterface != "" && flagCaptureFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagCaptureFor)
		defer cancel()
	}

	set, err := r.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(set) == 0 {
		return nil, ghio.ErrNoRecords
	}
	return set, nil
}
