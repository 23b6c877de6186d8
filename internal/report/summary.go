// Package report aggregates row results and writes the run's output files.
package report

import (
	"math"
	"time"

	"github.com/ShayCichocki/articlebench/pkg/models"
)

// Output file names written into a run's output directory.
const (
	DataFile        = "eval_data.jsonl"
	ResultsFile     = "eval_results.jsonl"
	ResultsMarkdown = "eval_results.md"
	runIDSuffix     = "_article_evaluation"
	runIDTimeLayout = "20060102150405"
)

// NewRunID names a run after its start time, e.g.
// 20250102150405_article_evaluation.
func NewRunID(t time.Time) string {
	return t.Format(runIDTimeLayout) + runIDSuffix
}

// Summarize computes per-metric statistics over the successful rows. A
// metric missing from a row does not count against it.
func Summarize(runID string, results []models.RowResult) models.Summary {
	sum := models.Summary{
		RunID:   runID,
		Total:   len(results),
		Metrics: make(map[string]models.MetricStats),
	}

	totals := make(map[string]float64)
	for _, r := range results {
		if !r.OK() {
			sum.Failed++
			continue
		}
		for key, v := range r.Scores {
			if math.IsNaN(v) {
				continue
			}
			st, ok := sum.Metrics[key]
			if !ok {
				st.Min, st.Max = v, v
			}
			st.Min = math.Min(st.Min, v)
			st.Max = math.Max(st.Max, v)
			st.Count++
			totals[key] += v
			sum.Metrics[key] = st
		}
	}

	for key, st := range sum.Metrics {
		st.Mean = totals[key] / float64(st.Count)
		sum.Metrics[key] = st
	}
	return sum
}

// Succeeded returns the rows that were fully scored.
func Succeeded(results []models.RowResult) []models.RowResult {
	out := make([]models.RowResult, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}
