package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ShayCichocki/articlebench/pkg/models"
)

// RemoteEvaluator delegates scoring to an external evaluation service. The
// service receives the sample as JSON and answers with a flat object of
// metric key to number; non-numeric fields are ignored.
type RemoteEvaluator struct {
	URL     string
	Headers http.Header
	Client  *http.Client
}

// NewRemoteEvaluator returns a RemoteEvaluator for url.
func NewRemoteEvaluator(url string) *RemoteEvaluator {
	return &RemoteEvaluator{URL: url, Client: &http.Client{}}
}

// Evaluate implements Evaluator.
func (r *RemoteEvaluator) Evaluate(ctx context.Context, s Sample) (models.Scores, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode sample: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range r.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", r.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("post %s: status %d: %s", r.URL, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}

	scores := make(models.Scores, len(raw))
	for k, v := range raw {
		if f, ok := v.(float64); ok {
			scores[k] = f
		}
	}
	if len(scores) == 0 {
		return nil, errors.New("evaluation service returned no numeric scores")
	}
	return scores, nil
}
