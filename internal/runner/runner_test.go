package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ShayCichocki/articlebench/internal/evaluator"
	"github.com/ShayCichocki/articlebench/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeOrchestrator struct {
	delay    func(request string) time.Duration
	fail     map[string]error
	inFlight atomic.Int32
	peak     atomic.Int32
	block    bool
}

func (f *fakeOrchestrator) Run(ctx context.Context, request, instructions string) (*models.RunRecord, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay != nil {
		select {
		case <-time.After(f.delay(request)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.fail[request]; err != nil {
		return nil, err
	}
	return models.NewRunRecord(
		models.Query{Request: request, Instructions: instructions},
		models.Context{},
		[]byte(`"article for `+request+`"`),
	)
}

// lengthEvaluator scores a sample by its response length so results can be
// matched back to rows.
func lengthEvaluator() evaluator.Evaluator {
	return evaluator.EvaluatorFunc(func(_ context.Context, s evaluator.Sample) (models.Scores, error) {
		return models.Scores{"gpt_len": float64(len(s.Response))}, nil
	})
}

func inputs(n int) []models.Input {
	out := make([]models.Input, n)
	for i := range out {
		out[i] = models.Input{Request: fmt.Sprintf("req-%02d", i), Instructions: "short"}
	}
	return out
}

func TestDefaultConcurrency(t *testing.T) {
	c := DefaultConcurrency()
	assert.GreaterOrEqual(t, c, 5)
	assert.LessOrEqual(t, c, 32)
}

func TestEvaluateOrchestrator_PreservesInputOrder(t *testing.T) {
	// Later rows finish first.
	orch := &fakeOrchestrator{delay: func(request string) time.Duration {
		var i int
		_, _ = fmt.Sscanf(request, "req-%d", &i)
		return time.Duration(10-i) * 2 * time.Millisecond
	}}
	r := &Runner{Orchestrator: orch, Evaluator: lengthEvaluator(), Concurrency: 10, Logger: zap.NewNop()}

	results, err := r.EvaluateOrchestrator(context.Background(), inputs(10))
	require.NoError(t, err)
	require.Len(t, results, 10)

	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, fmt.Sprintf("req-%02d", i), res.Input.Request)
		require.True(t, res.OK(), "row %d: %s", i, res.Err)
		assert.Contains(t, res.Record.Response, res.Input.Request)
		assert.Positive(t, res.Scores["gpt_len"])
	}
}

func TestEvaluateOrchestrator_BoundsConcurrency(t *testing.T) {
	orch := &fakeOrchestrator{delay: func(string) time.Duration { return 5 * time.Millisecond }}
	r := &Runner{Orchestrator: orch, Evaluator: lengthEvaluator(), Concurrency: 3}

	_, err := r.EvaluateOrchestrator(context.Background(), inputs(12))
	require.NoError(t, err)
	assert.LessOrEqual(t, orch.peak.Load(), int32(3))
}

func TestEvaluateOrchestrator_RowFailureIsIsolated(t *testing.T) {
	orch := &fakeOrchestrator{fail: map[string]error{"req-01": errors.New("pipeline exploded")}}
	r := &Runner{Orchestrator: orch, Evaluator: lengthEvaluator(), Concurrency: 2}

	results, err := r.EvaluateOrchestrator(context.Background(), inputs(3))
	require.NoError(t, err)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.Nil(t, results[1].Record)
	assert.Contains(t, results[1].Err, "orchestrate: pipeline exploded")
	assert.True(t, results[2].OK())
}

func TestEvaluateOrchestrator_EvaluatorFailure(t *testing.T) {
	ev := evaluator.EvaluatorFunc(func(_ context.Context, s evaluator.Sample) (models.Scores, error) {
		if strings.Contains(s.Query, "req-00") {
			return nil, evaluator.ErrMissingScore
		}
		return models.Scores{"gpt_fluency": 4}, nil
	})
	r := &Runner{Orchestrator: &fakeOrchestrator{}, Evaluator: ev}

	results, err := r.EvaluateOrchestrator(context.Background(), inputs(2))
	require.NoError(t, err)

	assert.NotNil(t, results[0].Record, "record kept when scoring fails")
	assert.Contains(t, results[0].Err, "evaluate: missing score")
	assert.Equal(t, 4.0, results[1].Scores["gpt_fluency"])
}

func TestEvaluateOrchestrator_RowTimeout(t *testing.T) {
	orch := &fakeOrchestrator{block: true}
	r := &Runner{Orchestrator: orch, Evaluator: lengthEvaluator(), RowTimeout: 20 * time.Millisecond}

	results, err := r.EvaluateOrchestrator(context.Background(), inputs(2))
	require.NoError(t, err, "row timeouts are row failures")
	for _, res := range results {
		assert.Contains(t, res.Err, context.DeadlineExceeded.Error())
	}
}

func TestEvaluateOrchestrator_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	orch := &fakeOrchestrator{block: true}
	r := &Runner{Orchestrator: orch, Evaluator: lengthEvaluator(), Concurrency: 2}

	time.AfterFunc(20*time.Millisecond, cancel)
	results, err := r.EvaluateOrchestrator(ctx, inputs(6))

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 6)
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.NotEmpty(t, res.Err)
	}
}

func TestEvaluateOrchestrator_Progress(t *testing.T) {
	progress := make(chan ProgressEvent, 64)
	orch := &fakeOrchestrator{fail: map[string]error{"req-02": errors.New("boom")}}
	r := &Runner{Orchestrator: orch, Evaluator: lengthEvaluator(), Progress: progress}

	_, err := r.EvaluateOrchestrator(context.Background(), inputs(3))
	require.NoError(t, err)
	close(progress)

	phases := map[int][]Phase{}
	for ev := range progress {
		assert.Equal(t, 3, ev.Total)
		phases[ev.Index] = append(phases[ev.Index], ev.Phase)
	}
	assert.Equal(t, []Phase{PhaseOrchestrating, PhaseEvaluating, PhaseDone}, phases[0])
	assert.Equal(t, []Phase{PhaseOrchestrating, PhaseFailed}, phases[2])
}

func TestEvaluateOrchestrator_RequiresDependencies(t *testing.T) {
	_, err := (&Runner{Evaluator: lengthEvaluator()}).EvaluateOrchestrator(context.Background(), nil)
	assert.Error(t, err)
	_, err = (&Runner{Orchestrator: &fakeOrchestrator{}}).EvaluateOrchestrator(context.Background(), nil)
	assert.Error(t, err)
}

func TestEvaluateRecords(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	ev := evaluator.EvaluatorFunc(func(_ context.Context, s evaluator.Sample) (models.Scores, error) {
		mu.Lock()
		seen[s.Response] = true
		mu.Unlock()
		return models.Scores{"gpt_coherence": 5}, nil
	})

	rec, err := models.NewRunRecord(models.Query{Request: "tents", Instructions: "brief"}, models.Context{}, []byte(`"text"`))
	require.NoError(t, err)
	records := []models.RunRecord{*rec, {Query: "not json", Context: "{}", Response: `"other"`}}

	r := &Runner{Evaluator: ev}
	results, err := r.EvaluateRecords(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, models.Input{Request: "tents", Instructions: "brief"}, results[0].Input)
	assert.Equal(t, models.Input{}, results[1].Input, "undecodable query leaves input empty")
	assert.True(t, results[1].OK())
	assert.True(t, seen[`"text"`])
	assert.True(t, seen[`"other"`])
}

func TestEvaluateRecords_Empty(t *testing.T) {
	results, err := (&Runner{Evaluator: lengthEvaluator()}).EvaluateRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
