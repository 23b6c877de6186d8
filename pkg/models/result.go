package models

import (
	"sort"
	"time"
)

// Scores maps a metric key (e.g. "gpt_relevance") to its judged value.
type Scores map[string]float64

// Metrics returns the metric keys in sorted order.
func (s Scores) Metrics() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge copies every score from other into s, overwriting duplicates.
func (s Scores) Merge(other Scores) {
	for k, v := range other {
		s[k] = v
	}
}

// RowResult is the outcome of evaluating a single input row.
type RowResult struct {
	// Index is the zero-based position of the row in the input file.
	Index int `json:"index"`
	// Input is the row that was evaluated. Empty when re-scoring records.
	Input Input `json:"input"`
	// Record is the orchestrator output, nil if the orchestrator failed.
	Record *RunRecord `json:"record,omitempty"`
	// Scores holds the judged metrics, nil if evaluation failed.
	Scores Scores `json:"scores,omitempty"`
	// Err is the failure message for this row, empty on success.
	Err string `json:"error,omitempty"`
	// Duration is the wall time spent on the row.
	Duration time.Duration `json:"duration"`
}

// OK reports whether the row was fully evaluated.
func (r RowResult) OK() bool {
	return r.Err == "" && r.Scores != nil
}

// MetricStats aggregates one metric across the successful rows.
type MetricStats struct {
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// Summary is the aggregate view of a run.
type Summary struct {
	RunID   string                 `json:"run_id"`
	Total   int                    `json:"total"`
	Failed  int                    `json:"failed"`
	Metrics map[string]MetricStats `json:"metrics"`
}

// MetricNames returns the summarized metric keys in sorted order.
func (s Summary) MetricNames() []string {
	keys := make([]string, 0, len(s.Metrics))
	for k := range s.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
