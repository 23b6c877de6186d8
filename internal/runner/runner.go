// Package runner evaluates input rows concurrently: each row is sent through
// the orchestrator, then scored by an evaluator.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/articlebench/internal/evaluator"
	"github.com/ShayCichocki/articlebench/internal/logging"
	"github.com/ShayCichocki/articlebench/pkg/models"
)

// Orchestrator produces a run record for one writing request.
type Orchestrator interface {
	Run(ctx context.Context, request, instructions string) (*models.RunRecord, error)
}

// Phase is a row's position in the pipeline.
type Phase string

const (
	PhaseOrchestrating Phase = "orchestrating"
	PhaseEvaluating    Phase = "evaluating"
	PhaseDone          Phase = "done"
	PhaseFailed        Phase = "failed"
)

// ProgressEvent reports a row phase change.
type ProgressEvent struct {
	Index    int
	Total    int
	Phase    Phase
	Request  string
	Scores   models.Scores
	Err      error
	Duration time.Duration
}

// Runner fans rows out over a bounded set of goroutines.
type Runner struct {
	Orchestrator Orchestrator
	Evaluator    evaluator.Evaluator
	// Concurrency bounds rows in flight. Zero means DefaultConcurrency().
	Concurrency int
	// RowTimeout bounds a single row. Zero means no per-row limit.
	RowTimeout time.Duration
	Logger     *zap.Logger
	// Progress, if set, receives one event per phase change. Sends block
	// until the receiver is ready or the run's context is done.
	Progress chan<- ProgressEvent
}

// DefaultConcurrency is min(32, NumCPU+4).
func DefaultConcurrency() int {
	return min(32, runtime.NumCPU()+4)
}

type rowFunc func(ctx context.Context, i int, res *models.RowResult) error

// EvaluateOrchestrator runs every input through the orchestrator and the
// evaluator. Results are in input order. A failing row is recorded in its
// RowResult and does not stop the others; cancelling ctx does, and the
// partial results are returned with ctx.Err().
func (r *Runner) EvaluateOrchestrator(ctx context.Context, inputs []models.Input) ([]models.RowResult, error) {
	if r.Orchestrator == nil {
		return nil, errors.New("runner: orchestrator is required")
	}
	if r.Evaluator == nil {
		return nil, errors.New("runner: evaluator is required")
	}

	total := len(inputs)
	return r.run(ctx, total, func(ctx context.Context, i int, res *models.RowResult) error {
		in := inputs[i]
		res.Input = in
		r.emit(ctx, ProgressEvent{Index: i, Total: total, Phase: PhaseOrchestrating, Request: in.Request})

		rec, err := r.Orchestrator.Run(ctx, in.Request, in.Instructions)
		if err != nil {
			return fmt.Errorf("orchestrate: %w", err)
		}
		res.Record = rec

		return r.score(ctx, i, total, res)
	})
}

// EvaluateRecords scores existing run records without calling the
// orchestrator.
func (r *Runner) EvaluateRecords(ctx context.Context, records []models.RunRecord) ([]models.RowResult, error) {
	if r.Evaluator == nil {
		return nil, errors.New("runner: evaluator is required")
	}

	total := len(records)
	return r.run(ctx, total, func(ctx context.Context, i int, res *models.RowResult) error {
		rec := records[i]
		res.Record = &rec
		if q, err := rec.DecodeQuery(); err == nil {
			res.Input = models.Input{Request: q.Request, Instructions: q.Instructions}
		}
		return r.score(ctx, i, total, res)
	})
}

func (r *Runner) score(ctx context.Context, i, total int, res *models.RowResult) error {
	r.emit(ctx, ProgressEvent{Index: i, Total: total, Phase: PhaseEvaluating, Request: res.Input.Request})

	scores, err := r.Evaluator.Evaluate(ctx, evaluator.SampleFromRecord(res.Record))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	res.Scores = scores
	return nil
}

func (r *Runner) run(ctx context.Context, total int, row rowFunc) ([]models.RowResult, error) {
	log := logging.OrNop(r.Logger).Named("runner")
	results := make([]models.RowResult, total)
	for i := range results {
		results[i].Index = i
	}

	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency()
	}
	log.Debug("starting rows", zap.Int("rows", total), zap.Int("concurrency", limit))

	// Plain group: a row error must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(limit)

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r.runRow(ctx, log, i, total, row, &results[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].Err == "" && results[i].Scores == nil {
				results[i].Err = err.Error()
			}
		}
		return results, err
	}
	return results, nil
}

func (r *Runner) runRow(ctx context.Context, log *zap.Logger, i, total int, row rowFunc, res *models.RowResult) {
	rowCtx := ctx
	if r.RowTimeout > 0 {
		var cancel context.CancelFunc
		rowCtx, cancel = context.WithTimeout(ctx, r.RowTimeout)
		defer cancel()
	}

	start := time.Now()
	err := row(rowCtx, i, res)
	res.Duration = time.Since(start)

	if err != nil {
		res.Err = err.Error()
		log.Warn("row failed",
			zap.Int("row", i),
			zap.String("request", res.Input.Request),
			zap.Duration("duration", res.Duration),
			zap.Error(err))
		r.emit(ctx, ProgressEvent{Index: i, Total: total, Phase: PhaseFailed, Request: res.Input.Request, Err: err, Duration: res.Duration})
		return
	}

	log.Info("evaluation results",
		zap.Int("row", i),
		zap.String("request", res.Input.Request),
		zap.Any("scores", res.Scores),
		zap.Duration("duration", res.Duration))
	r.emit(ctx, ProgressEvent{Index: i, Total: total, Phase: PhaseDone, Request: res.Input.Request, Scores: res.Scores, Duration: res.Duration})
}

func (r *Runner) emit(ctx context.Context, ev ProgressEvent) {
	if r.Progress == nil {
		return
	}
	select {
	case r.Progress <- ev:
	case <-ctx.Done():
	}
}
