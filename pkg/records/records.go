// Package records defines the record set that flows through the detection pipeline.
package records

// Record is a single input row: a unique key and its raw feature values.
// Vals cells hold float64, int, bool, or string values.
type Record struct {
	Key  string `json:"key" msgpack:"key"`
	Vals []any  `json:"vals" msgpack:"vals"`
}

// RecordSet is an ordered sequence of records. Order is preserved end-to-end.
type RecordSet []Record

// Usable returns the number of records that carry at least one value.
func (s RecordSet) Usable() int {
	n := 0
	for _, r := range s {
		if len(r.Vals) > 0 {
			n++
		}
	}
	return n
}

// Keys returns the record keys in order.
func (s RecordSet) Keys() []string {
	keys := make([]string, len(s))
	for i, r := range s {
		keys[i] = r.Key
	}
	return keys
}

// Clone returns a copy of the set that shares no slices with the original.
func (s RecordSet) Clone() RecordSet {
	out := make(RecordSet, len(s))
	for i, r := range s {
		vals := make([]any, len(r.Vals))
		copy(vals, r.Vals)
		out[i] = Record{Key: r.Key, Vals: vals}
	}
	return out
}

// LabeledRecord is a record with the ensemble decision attached.
type LabeledRecord struct {
	Record
	IsAnomaly    bool    `json:"is_anomaly" msgpack:"is_anomaly"`
	AnomalyScore float64 `json:"anomaly_score" msgpack:"anomaly_score"`

	// RawLabels and RawScores hold each executed detector's reduced output,
	// keyed by detector name.
	RawLabels map[string]bool    `json:"raw_labels,omitempty" msgpack:"raw_labels,omitempty"`
	RawScores map[string]float64 `json:"raw_scores,omitempty" msgpack:"raw_scores,omitempty"`
}

// Unlabeled returns every record unflagged with a zero score.
func Unlabeled(s RecordSet) []LabeledRecord {
	out := make([]LabeledRecord, len(s))
	for i, r := range s.Clone() {
		out[i] = LabeledRecord{Record: r}
	}
	return out
}

// CountAnomalies returns how many records are flagged.
func CountAnomalies(labeled []LabeledRecord) int {
	n := 0
	for _, r := range labeled {
		if r.IsAnomaly {
			n++
		}
	}
	return n
}
