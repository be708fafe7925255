// Package timeseries holds the time-series detection entry points. No
// ensemble is wired for either path yet: every record comes back unflagged.
// The single-series path reports changepoint breakpoints as diagnostics.
package timeseries

import (
	"context"
	"log/slog"

	"github.com/hed1ad/ghostml/pkg/changepoint"
	"github.com/hed1ad/ghostml/pkg/encoding"
	"github.com/hed1ad/ghostml/pkg/records"
)

// NoEnsembleMessage accompanies every time-series result.
const NoEnsembleMessage = "No ensemble chosen."

// Result is the output of a time-series detection call.
type Result struct {
	Records  []records.LabeledRecord `json:"records"`
	TestsRun map[string]int          `json:"tests_run"`
	Message  string                  `json:"message"`
	// Breakpoints are segment ends found by the changepoint capability,
	// the last always equal to the record count.
	Breakpoints []int `json:"breakpoints,omitempty"`
}

// Detector runs the time-series paths.
type Detector struct {
	segmenter changepoint.Segmenter
	encoder   encoding.Encoder
	penalty   float64
	logger    *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithSegmenter replaces the changepoint capability.
func WithSegmenter(s changepoint.Segmenter) Option {
	return func(d *Detector) {
		d.segmenter = s
	}
}

// WithPenalty sets the changepoint penalty per breakpoint.
func WithPenalty(p float64) Option {
	return func(d *Detector) {
		d.penalty = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

// New creates a Detector segmenting with PELT at penalty 10.
func New(opts ...Option) *Detector {
	d := &Detector{
		segmenter: changepoint.NewPelt(),
		encoder:   encoding.Ordinal{},
		penalty:   10,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectSingle handles one time series given as records in time order.
// Segmentation failures are logged and leave Breakpoints empty.
func (d *Detector) DetectSingle(ctx context.Context, set records.RecordSet, sensitivityScore, maxFractionAnomalies float64) (*Result, error) {
	res := stub(set)

	signal, _, err := d.encoder.Encode(set.Clone())
	if err != nil {
		d.logger.Warn("time series not segmented", "error", err)
		return res, nil
	}
	bkps, err := d.segmenter.Segment(ctx, signal, d.penalty)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.logger.Warn("time series not segmented", "error", err)
		return res, nil
	}
	res.Breakpoints = bkps
	d.logger.Debug("time series segmented",
		"records", len(set), "breakpoints", len(bkps),
		"sensitivity_score", sensitivityScore, "max_fraction_anomalies", maxFractionAnomalies)
	return res, nil
}

// DetectMulti handles several aligned time series.
func (d *Detector) DetectMulti(ctx context.Context, set records.RecordSet, sensitivityScore, maxFractionAnomalies float64, nNeighbors int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return stub(set), nil
}

func stub(set records.RecordSet) *Result {
	return &Result{
		Records:  records.Unlabeled(set),
		TestsRun: map[string]int{},
		Message:  NoEnsembleMessage,
	}
}
