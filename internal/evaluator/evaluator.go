// Package evaluator scores (query, context, response) samples with an LLM
// judge or a remote evaluation service.
package evaluator

import (
	"context"

	"github.com/ShayCichocki/articlebench/pkg/models"
)

// Sample is a single item to score. Fields carry the JSON text stored in a
// run record.
type Sample struct {
	Query    string `json:"query"`
	Context  string `json:"context"`
	Response string `json:"response"`
}

// SampleFromRecord converts a run record into a Sample.
func SampleFromRecord(r *models.RunRecord) Sample {
	return Sample{Query: r.Query, Context: r.Context, Response: r.Response}
}

// Evaluator scores a sample, returning one value per metric key.
type Evaluator interface {
	Evaluate(ctx context.Context, s Sample) (models.Scores, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, s Sample) (models.Scores, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, s Sample) (models.Scores, error) {
	return f(ctx, s)
}
