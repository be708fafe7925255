// Package ensemble runs several anomaly detectors over one record set and
// combines their outputs into a single decision per record.
//
// The flow is: validate the request, encode records into a numeric matrix,
// run every applicable detector (sweeping n_neighbors where it matters),
// reduce each sweep to one label/score series, sum detector scores into an
// ensemble score, and cut that score at an adaptive threshold derived from
// the sensitivity dial and the max fraction of anomalies.
package ensemble

import (
	"log/slog"
	"maps"
	"time"

	"github.com/hed1ad/ghostml/pkg/detectors"
	"github.com/hed1ad/ghostml/pkg/encoding"
)

// Config holds the per-request detection parameters.
type Config struct {
	// SensitivityScore is the 0-100 dial; 100 flags the most rows.
	SensitivityScore float64 `json:"sensitivity_score"`
	// MaxFractionAnomalies caps the share of rows that may be flagged, in (0, 1].
	MaxFractionAnomalies float64 `json:"max_fraction_anomalies"`
	// NNeighbors is the smallest neighbor count swept by neighborhood detectors.
	NNeighbors int `json:"n_neighbors"`
	// SensitivityFactors weighs each detector's contribution to the threshold
	// floor, keyed by detector name.
	SensitivityFactors map[string]float64 `json:"sensitivity_factors"`
}

// DefaultSensitivityFactors returns the floor weights used when a request
// does not provide its own.
func DefaultSensitivityFactors() map[string]float64 {
	return map[string]float64{
		"cof":     5.0,
		"loci":    0.95,
		"copod":   0.75,
		"iforest": 0.5,
	}
}

// DefaultConfig returns sensible defaults for a detection request.
func DefaultConfig() Config {
	return Config{
		SensitivityScore:     50,
		MaxFractionAnomalies: 0.1,
		NNeighbors:           10,
		SensitivityFactors:   DefaultSensitivityFactors(),
	}
}

// Clone returns a copy of c that shares no map with it.
func (c Config) Clone() Config {
	c.SensitivityFactors = maps.Clone(c.SensitivityFactors)
	return c
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegistry sets the detectors the pipeline runs.
func WithRegistry(r *detectors.Registry) Option {
	return func(p *Pipeline) {
		p.runner.registry = r
	}
}

// WithEncoder replaces the record encoder.
func WithEncoder(e encoding.Encoder) Option {
	return func(p *Pipeline) {
		p.encoder = e
	}
}

// WithWorkers bounds how many detector invocations run concurrently.
// Zero or less means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		p.runner.workers = n
	}
}

// WithDetectorTimeout bounds each detector invocation. A timed-out
// invocation counts as not run. Zero disables the timeout.
//
// The runner stops waiting at the deadline but cannot stop the detector:
// its goroutine lives until Detect returns. A detector that never checks
// its context keeps running, and holds its memory, for as long as it takes.
func WithDetectorTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.runner.timeout = d
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
		p.runner.logger = l
	}
}

// WithAnchor names the detector whose median score anchors the threshold floor.
func WithAnchor(name string) Option {
	return func(p *Pipeline) {
		p.anchor = name
	}
}

// WithSweepSpan sets how far above n_neighbors the sweep reaches.
func WithSweepSpan(n int) Option {
	return func(p *Pipeline) {
		p.runner.span = n
	}
}

// WithSweepStep sets the neighbor-count increment of the sweep.
func WithSweepStep(n int) Option {
	return func(p *Pipeline) {
		p.runner.step = n
	}
}

// WithSeed sets the random seed handed to randomized detectors.
func WithSeed(seed int64) Option {
	return func(p *Pipeline) {
		p.runner.seed = seed
	}
}
