package ensemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hed1ad/ghostml/pkg/encoding"
	"github.com/hed1ad/ghostml/pkg/records"
)

// SuccessMessage accompanies every result that went through the detectors.
const SuccessMessage = "Result of multivariate statistical tests."

// Diagnostics is the explainability trace of a completed request.
type Diagnostics struct {
	Encoding  encoding.Diagnostics `json:"Encoding"`
	Tests     RunDiagnostics       `json:"Test diagnostics"`
	Threshold Trace                `json:"Threshold"`
}

// Result is the output of DetectAnomalies.
type Result struct {
	// Records holds every input record in input order with its decision.
	Records []records.LabeledRecord `json:"records"`
	// TestsRun flags which detectors executed.
	TestsRun map[string]int `json:"tests_run"`
	// Weights lists the detectors the pipeline was configured with.
	Weights map[string]float64 `json:"weights"`
	// Message is SuccessMessage, or the reason the request was rejected.
	Message string `json:"message"`
	// Rejected is set when validation or encoding refused the request.
	Rejected bool `json:"rejected"`
	// Diagnostics is nil for rejected requests.
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

// Pipeline is the detection entry point. It holds no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	runner  Runner
	encoder encoding.Encoder
	anchor  string
	logger  *slog.Logger
}

// New creates a Pipeline running the default registry.
func New(opts ...Option) *Pipeline {
	logger := slog.New(slog.DiscardHandler)
	p := &Pipeline{
		runner: Runner{
			registry: DefaultRegistry(),
			span:     100,
			step:     5,
			seed:     42,
			logger:   logger,
		},
		encoder: encoding.Ordinal{},
		anchor:  DefaultAnchor,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// DetectAnomalies flags anomalous records in set.
//
// Invalid configurations and unencodable records do not produce an error:
// the result comes back with every record unflagged, zero scores, Rejected
// set and a human-readable Message. Errors are returned only for contract
// violations (wrapping ErrContract) and cancellation of ctx.
func (p *Pipeline) DetectAnomalies(ctx context.Context, set records.RecordSet, cfg Config) (*Result, error) {
	log := p.logger.With("run_id", uuid.NewString())
	weights := p.weights()

	if err := Validate(set.Usable(), cfg); err != nil {
		log.Info("request rejected", "reason", err.Error())
		return p.rejected(set, weights, err.Error()), nil
	}

	snapshot := set.Clone()
	matrix, encDiag, err := p.encoder.Encode(snapshot)
	if err != nil {
		log.Info("request rejected", "reason", err.Error())
		return p.rejected(set, weights, fmt.Sprintf("Unable to encode input: %v", err)), nil
	}
	if len(matrix) != len(snapshot) {
		return nil, fmt.Errorf("%w: encoder returned %d rows for %d records", ErrContract, len(matrix), len(snapshot))
	}

	contamination := min(cfg.MaxFractionAnomalies, 0.5)
	report, err := p.runner.Run(ctx, matrix, cfg.NNeighbors, contamination)
	if err != nil {
		if errors.Is(err, ErrContract) {
			log.Error("detector contract violated", "error", err)
		}
		return nil, err
	}

	reduced := ReduceAll(report)
	scores := Combine(reduced, report.TestsRun, report.Order, len(matrix))

	var anchor []float64
	if report.TestsRun[p.anchor] == 1 {
		anchor = reduced[p.anchor].Scores
	}
	flags, trace := Threshold(ThresholdInput{
		Scores:               scores,
		Anchor:               anchor,
		TestsRun:             report.TestsRun,
		Factors:              cfg.SensitivityFactors,
		SensitivityScore:     cfg.SensitivityScore,
		MaxFractionAnomalies: cfg.MaxFractionAnomalies,
	})

	labeled := make([]records.LabeledRecord, len(snapshot))
	for i, r := range snapshot {
		lr := records.LabeledRecord{
			Record:       r,
			IsAnomaly:    flags[i],
			AnomalyScore: scores[i],
			RawLabels:    make(map[string]bool, len(reduced)),
			RawScores:    make(map[string]float64, len(reduced)),
		}
		for name, red := range reduced {
			lr.RawLabels[name] = red.Labels[i]
			lr.RawScores[name] = red.Scores[i]
		}
		labeled[i] = lr
	}

	log.Debug("ensemble threshold computed",
		"records", len(labeled),
		"cutoff", trace.Cutoff,
		"cap_applied", trace.CapApplied,
		"anomalies", records.CountAnomalies(labeled))

	return &Result{
		Records:  labeled,
		TestsRun: report.TestsRun,
		Weights:  weights,
		Message:  SuccessMessage,
		Diagnostics: &Diagnostics{
			Encoding:  encDiag,
			Tests:     report.Diagnostics,
			Threshold: trace,
		},
	}, nil
}

// Detectors returns the names of the detectors the pipeline runs.
func (p *Pipeline) Detectors() []string {
	return p.runner.registry.Names()
}

func (p *Pipeline) weights() map[string]float64 {
	w := make(map[string]float64)
	for _, name := range p.runner.registry.Names() {
		w[name] = 1.0
	}
	return w
}

// rejected builds the safe default result: nothing flagged, nothing run.
func (p *Pipeline) rejected(set records.RecordSet, weights map[string]float64, msg string) *Result {
	testsRun := make(map[string]int, len(weights))
	for name := range weights {
		testsRun[name] = 0
	}
	return &Result{
		Records:  records.Unlabeled(set),
		TestsRun: testsRun,
		Weights:  weights,
		Message:  msg,
		Rejected: true,
	}
}
