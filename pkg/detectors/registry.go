package detectors

import (
	"fmt"
	"strings"
)

// Entry binds a detector to the policy the ensemble runs it under.
type Entry struct {
	// Name keys tests-run flags, sensitivity factors and output columns.
	Name     string
	Detector Detector
	// Sweep marks detectors whose output depends on n_neighbors. They are
	// run once per swept neighbor count.
	Sweep bool
	// Contamination, when positive, fixes the contamination passed to the
	// detector instead of the request's max fraction of anomalies.
	Contamination float64
	// Applies reports whether the detector should run on a dataset of the
	// given row count. A nil Applies always runs.
	Applies func(rows int) bool
	// Description is shown when listing detectors.
	Description string
}

// AppliesTo reports whether the entry runs on a dataset with rows rows.
func (e Entry) AppliesTo(rows int) bool {
	return e.Applies == nil || e.Applies(rows)
}

// AtMostRows returns an applicability predicate that accepts datasets with
// no more than limit rows.
func AtMostRows(limit int) func(int) bool {
	return func(rows int) bool {
		return rows <= limit
	}
}

// Registry is an ordered, name-indexed set of detector entries.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// NewRegistry builds a registry from entries, rejecting duplicate names.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends an entry.
func (r *Registry) Register(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("detector entry has no name")
	}
	if e.Detector == nil {
		return fmt.Errorf("detector %q has no implementation", e.Name)
	}
	if _, ok := r.index[e.Name]; ok {
		return fmt.Errorf("detector %q registered twice", e.Name)
	}
	if r.index == nil {
		r.index = make(map[string]int)
	}
	r.index[e.Name] = len(r.entries)
	r.entries = append(r.entries, e)
	return nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	i, ok := r.index[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Entries returns the entries in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names returns the entry names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Select returns a new registry holding only the named entries, in the
// order given.
func (r *Registry) Select(names ...string) (*Registry, error) {
	out := &Registry{index: make(map[string]int, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		e, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown detector %q (available: %s)", name, strings.Join(r.Names(), ", "))
		}
		if err := out.Register(e); err != nil {
			return nil, err
		}
	}
	return out, nil
}
