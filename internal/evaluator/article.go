package evaluator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/articlebench/internal/llm"
	"github.com/ShayCichocki/articlebench/internal/logging"
	"github.com/ShayCichocki/articlebench/pkg/models"
)

// ArticleEvaluator runs a set of metrics over a sample and merges their
// scores. Metrics are scored concurrently; the first failure cancels the rest.
type ArticleEvaluator struct {
	metrics []Metric
	logger  *zap.Logger
}

// NewArticleEvaluator builds an evaluator from built-in metric names.
// An empty names list selects every known metric.
func NewArticleEvaluator(judge llm.Completer, names []string, logger *zap.Logger) (*ArticleEvaluator, error) {
	if judge == nil {
		return nil, errors.New("judge is required")
	}
	if len(names) == 0 {
		names = KnownMetrics()
	}

	seen := make(map[string]bool, len(names))
	metrics := make([]Metric, 0, len(names))
	for _, name := range names {
		m, err := NewJudgeMetric(name, judge)
		if err != nil {
			return nil, err
		}
		if seen[m.Name()] {
			continue
		}
		seen[m.Name()] = true
		metrics = append(metrics, m)
	}
	return NewComposite(logger, metrics...), nil
}

// NewComposite combines arbitrary metrics into one evaluator.
func NewComposite(logger *zap.Logger, metrics ...Metric) *ArticleEvaluator {
	return &ArticleEvaluator{
		metrics: metrics,
		logger:  logging.OrNop(logger).Named("evaluator"),
	}
}

// Metrics returns the configured metrics in evaluation order.
func (a *ArticleEvaluator) Metrics() []Metric {
	return a.metrics
}

// Evaluate implements Evaluator.
func (a *ArticleEvaluator) Evaluate(ctx context.Context, s Sample) (models.Scores, error) {
	values := make([]float64, len(a.metrics))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range a.metrics {
		g.Go(func() error {
			v, err := m.Score(gctx, s)
			if err != nil {
				return fmt.Errorf("%s: %w", m.Name(), err)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := make(models.Scores, len(a.metrics))
	for i, m := range a.metrics {
		scores[m.Key()] = values[i]
	}
	a.logger.Debug("sample scored", zap.Any("scores", scores))
	return scores, nil
}
