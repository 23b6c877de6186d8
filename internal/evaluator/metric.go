package evaluator

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/ShayCichocki/articlebench/internal/llm"
)

// Metric scores one aspect of a sample.
type Metric interface {
	// Name is the short metric name, e.g. "relevance".
	Name() string
	// Key is the result column, e.g. "gpt_relevance".
	Key() string
	Score(ctx context.Context, s Sample) (float64, error)
}

const judgeSystem = `You are an impartial evaluator of AI-written marketing articles.
Follow the rubric exactly. Reply with a single line of the form "Score: N" where N is an integer from 1 to 5.`

const replyFormat = `

Reply with "Score: N" only.`

// rubrics are the judge prompts per metric. Query, Context and Response are
// the JSON text from the run record.
var rubrics = map[string]string{
	"relevance": `Relevance measures how well the article addresses the writing request and uses the supplied context.
1: unrelated to the request. 3: partially addresses it, misses key points. 5: fully addresses the request and draws on the context.

REQUEST: {{.Query}}
CONTEXT: {{.Context}}
ARTICLE: {{.Response}}`,

	"fluency": `Fluency measures grammar, word choice and sentence flow, independent of content.
1: hard to read, frequent errors. 3: understandable with awkward phrasing. 5: polished, natural prose.

ARTICLE: {{.Response}}`,

	"coherence": `Coherence measures whether the article's sentences fit together into a logically organised whole that answers the request.
1: disjointed. 3: some structure with gaps. 5: well organised throughout.

REQUEST: {{.Query}}
ARTICLE: {{.Response}}`,

	"groundedness": `Groundedness measures whether every claim in the article is supported by the context. Claims not found in the context count against the score.
1: mostly unsupported. 3: mixed. 5: every claim is supported.

CONTEXT: {{.Context}}
ARTICLE: {{.Response}}`,
}

// KnownMetrics returns the metric names that have a built-in rubric.
func KnownMetrics() []string {
	return []string{"relevance", "fluency", "coherence", "groundedness"}
}

// JudgeMetric scores a sample by prompting an LLM with a rubric.
type JudgeMetric struct {
	name  string
	tmpl  *template.Template
	judge llm.Completer
}

// NewJudgeMetric returns the built-in metric called name.
func NewJudgeMetric(name string, judge llm.Completer) (*JudgeMetric, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	rubric, ok := rubrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", name)
	}
	return NewCustomMetric(name, rubric, judge)
}

// NewCustomMetric builds a metric from a text/template rubric. The template
// sees .Query, .Context and .Response.
func NewCustomMetric(name, rubric string, judge llm.Completer) (*JudgeMetric, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(rubric + replyFormat)
	if err != nil {
		return nil, fmt.Errorf("parse %s rubric: %w", name, err)
	}
	return &JudgeMetric{name: name, tmpl: tmpl, judge: judge}, nil
}

// Name implements Metric.
func (m *JudgeMetric) Name() string { return m.name }

// Key implements Metric.
func (m *JudgeMetric) Key() string { return "gpt_" + m.name }

// Prompt renders the rubric for s.
func (m *JudgeMetric) Prompt(s Sample) (string, error) {
	var b strings.Builder
	if err := m.tmpl.Execute(&b, s); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", m.name, err)
	}
	return b.String(), nil
}

// Score implements Metric.
func (m *JudgeMetric) Score(ctx context.Context, s Sample) (float64, error) {
	prompt, err := m.Prompt(s)
	if err != nil {
		return 0, err
	}
	reply, err := m.judge.Complete(ctx, judgeSystem, prompt)
	if err != nil {
		return 0, err
	}
	score, err := ParseScore(reply)
	if err != nil {
		return 0, fmt.Errorf("parse %s reply %q: %w", m.name, truncate(reply, 80), err)
	}
	return score, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
