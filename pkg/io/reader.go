// Package io defines how record sets enter the pipeline and how detection
// reports leave it. Concrete formats live in the subpackages.
package io

import (
	"context"
	"errors"
	"slices"

	"github.com/hed1ad/ghostml/pkg/ensemble"
	"github.com/hed1ad/ghostml/pkg/records"
	"github.com/hed1ad/ghostml/pkg/timeseries"
)

// ErrNoRecords is returned by readers whose source held no records.
var ErrNoRecords = errors.New("no records in input")

// Reader is the interface for reading record sets from various sources.
type Reader interface {
	// Read returns the complete record set in source order.
	Read(ctx context.Context) (records.RecordSet, error)

	// Close releases resources.
	Close() error
}

// Writer is the interface for writing detection reports.
type Writer interface {
	// Write outputs a full report.
	Write(report *Report) error
}

// Report is the format-neutral view of a detection result.
type Report struct {
	Records     []records.LabeledRecord `json:"records" msgpack:"records"`
	TestsRun    map[string]int          `json:"tests_run" msgpack:"tests_run"`
	Weights     map[string]float64      `json:"weights,omitempty" msgpack:"weights,omitempty"`
	Message     string                  `json:"message" msgpack:"message"`
	Rejected    bool                    `json:"rejected,omitempty" msgpack:"rejected,omitempty"`
	Breakpoints []int                   `json:"breakpoints,omitempty" msgpack:"breakpoints,omitempty"`
	Diagnostics any                     `json:"diagnostics,omitempty" msgpack:"diagnostics,omitempty"`
}

// FromEnsemble converts an ensemble result.
func FromEnsemble(res *ensemble.Result) *Report {
	r := &Report{
		Records:  res.Records,
		TestsRun: res.TestsRun,
		Weights:  res.Weights,
		Message:  res.Message,
		Rejected: res.Rejected,
	}
	if res.Diagnostics != nil {
		r.Diagnostics = res.Diagnostics
	}
	return r
}

// FromTimeSeries converts a time-series result.
func FromTimeSeries(res *timeseries.Result) *Report {
	return &Report{
		Records:     res.Records,
		TestsRun:    res.TestsRun,
		Message:     res.Message,
		Breakpoints: res.Breakpoints,
	}
}

// Detectors returns the detector names of TestsRun, sorted.
func (r *Report) Detectors() []string {
	names := make([]string, 0, len(r.TestsRun))
	for name := range r.TestsRun {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
