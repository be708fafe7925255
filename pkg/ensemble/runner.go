package ensemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hed1ad/ghostml/pkg/detectors"
)

// ErrContract marks a collaborator breaking its contract, such as a detector
// returning the wrong number of rows. It is fatal to the request.
var ErrContract = errors.New("contract violation")

// Invocation describes one detector call.
type Invocation struct {
	Detector string
	// Key names the invocation in diagnostics: "Neighbors_<n>" for swept
	// detectors, the detector name otherwise.
	Key    string
	Params detectors.Params
}

// Run is a successful invocation and its result.
type Run struct {
	Invocation
	Result detectors.Result
}

// DetectorTrace records what happened to one detector during a run.
type DetectorTrace struct {
	Ran         bool                          `json:"ran"`
	Skipped     string                        `json:"skipped,omitempty"`
	Invocations map[string]map[string]float64 `json:"invocations,omitempty"`
	Failures    map[string]string             `json:"failures,omitempty"`
}

// RunDiagnostics summarizes a detector run.
type RunDiagnostics struct {
	RecordCount int                      `json:"Number of records"`
	Detectors   map[string]DetectorTrace `json:"Detectors"`
}

// Report is the raw output of the Detector Runner.
type Report struct {
	// Runs holds the successful invocations per detector, in sweep order.
	Runs map[string][]Run
	// TestsRun is 1 for every detector with at least one successful
	// invocation and 0 otherwise.
	TestsRun    map[string]int
	Diagnostics RunDiagnostics
	// Order lists detector names in registry order.
	Order []string
}

// Runner selects applicable detectors, sweeps the ones that need it, and
// invokes them concurrently against one read-only feature matrix.
type Runner struct {
	registry *detectors.Registry
	workers  int
	timeout  time.Duration
	span     int
	step     int
	seed     int64
	logger   *slog.Logger
}

// Run invokes every applicable detector on data. Detector failures and
// timeouts are recorded and degrade that invocation to "not run"; only
// contract violations and cancellation of ctx itself return an error.
func (r *Runner) Run(ctx context.Context, data [][]float64, nNeighbors int, contamination float64) (*Report, error) {
	rows := len(data)
	report := &Report{
		Runs:     make(map[string][]Run),
		TestsRun: make(map[string]int),
		Diagnostics: RunDiagnostics{
			RecordCount: rows,
			Detectors:   make(map[string]DetectorTrace),
		},
		Order: r.registry.Names(),
	}

	var invocations []Invocation
	for _, e := range r.registry.Entries() {
		report.TestsRun[e.Name] = 0
		if !e.AppliesTo(rows) {
			report.Diagnostics.Detectors[e.Name] = DetectorTrace{
				Skipped: fmt.Sprintf("not applicable to %d records", rows),
			}
			r.logger.Info("detector skipped", "detector", e.Name, "records", rows)
			continue
		}
		invocations = append(invocations, r.plan(e, rows, nNeighbors, contamination)...)
	}

	type slot struct {
		result detectors.Result
		err    error
	}
	slots := make([]slot, len(invocations))

	workers := r.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, inv := range invocations {
		g.Go(func() error {
			entry, _ := r.registry.Lookup(inv.Detector)
			start := time.Now()
			res, err := r.invoke(gctx, entry.Detector, data, inv.Params)
			if err == nil {
				if cerr := checkShape(res, rows); cerr != nil {
					return fmt.Errorf("%w: detector %s (%s): %v", ErrContract, inv.Detector, inv.Key, cerr)
				}
			}
			slots[i] = slot{result: res, err: err}
			r.logger.Debug("detector invocation finished",
				"detector", inv.Detector, "invocation", inv.Key,
				"elapsed", time.Since(start), "error", err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, inv := range invocations {
		trace := report.Diagnostics.Detectors[inv.Detector]
		if trace.Invocations == nil {
			trace.Invocations = make(map[string]map[string]float64)
		}
		if err := slots[i].err; err != nil {
			if trace.Failures == nil {
				trace.Failures = make(map[string]string)
			}
			trace.Failures[inv.Key] = err.Error()
			r.logger.Warn("detector invocation failed", "detector", inv.Detector, "invocation", inv.Key, "error", err)
		} else {
			trace.Invocations[inv.Key] = slots[i].result.Diagnostics
			report.Runs[inv.Detector] = append(report.Runs[inv.Detector], Run{Invocation: inv, Result: slots[i].result})
			trace.Ran = true
			report.TestsRun[inv.Detector] = 1
		}
		report.Diagnostics.Detectors[inv.Detector] = trace
	}

	return report, nil
}

// plan expands an entry into its invocations.
func (r *Runner) plan(e detectors.Entry, rows, nNeighbors int, contamination float64) []Invocation {
	params := detectors.Params{
		NNeighbors:    nNeighbors,
		Contamination: contamination,
		RandomSeed:    r.seed,
	}
	if e.Contamination > 0 {
		params.Contamination = e.Contamination
	}

	if !e.Sweep {
		return []Invocation{{Detector: e.Name, Key: e.Name, Params: params}}
	}

	var out []Invocation
	for n := range Sweep(nNeighbors, rows, r.span, r.step) {
		p := params
		p.NNeighbors = n
		out = append(out, Invocation{Detector: e.Name, Key: "Neighbors_" + strconv.Itoa(n), Params: p})
	}
	return out
}

// invoke calls d under the per-invocation timeout. It returns as soon as
// the deadline passes even if d ignores its context, and turns a panic in
// d into an error.
func (r *Runner) invoke(ctx context.Context, d detectors.Detector, data [][]float64, params detectors.Params) (detectors.Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type outcome struct {
		res detectors.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("detector panicked: %v", p)}
			}
		}()
		res, err := d.Detect(ctx, data, params)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return detectors.Result{}, ctx.Err()
	}
}

func checkShape(res detectors.Result, rows int) error {
	if len(res.Scores) != rows {
		return fmt.Errorf("returned %d scores for %d rows", len(res.Scores), rows)
	}
	if len(res.Labels) != rows {
		return fmt.Errorf("returned %d labels for %d rows", len(res.Labels), rows)
	}
	return nil
}
