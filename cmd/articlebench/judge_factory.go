package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/ShayCichocki/articlebench/internal/config"
	"github.com/ShayCichocki/articlebench/internal/evaluator"
	"github.com/ShayCichocki/articlebench/internal/llm"
	"github.com/ShayCichocki/articlebench/internal/orchestrator"
)

// judge bundles the evaluator with what the history needs to know about it.
type judge struct {
	evaluator evaluator.Evaluator
	model     string
	// tracker is nil for the remote provider.
	tracker *llm.TokenTracker
}

// newJudge creates the evaluator for the configured judge provider.
func newJudge(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*judge, error) {
	if cfg.Judge.Provider == config.ProviderRemote {
		return &judge{
			evaluator: evaluator.NewRemoteEvaluator(cfg.Judge.RemoteURL),
			model:     "remote:" + cfg.Judge.RemoteURL,
		}, nil
	}

	completer, model, tracker, err := newCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ev, err := evaluator.NewArticleEvaluator(completer, cfg.Run.Metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("create evaluator: %w", err)
	}
	return &judge{evaluator: ev, model: model, tracker: tracker}, nil
}

func newCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, string, *llm.TokenTracker, error) {
	switch cfg.Judge.Provider {
	case config.ProviderGemini:
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, "", nil, fmt.Errorf("%w: set GEMINI_API_KEY or judge.gemini_api_key", err)
		}
		model := cfg.Judge.Model
		// The default model is a Claude model; let the Gemini client pick its own.
		if strings.HasPrefix(model, "claude") {
			model = ""
		}
		c, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:    key,
			Model:     model,
			MaxTokens: int32(cfg.Judge.MaxTokens),
		})
		if err != nil {
			return nil, "", nil, fmt.Errorf("create gemini judge: %w", err)
		}
		return c, c.Model(), c.Tracker(), nil

	case config.ProviderBedrock:
		c, err := llm.NewClient(llm.ClientConfig{
			Model:         anthropic.Model(cfg.Judge.Model),
			MaxTokens:     int64(cfg.Judge.MaxTokens),
			UseAWSBedrock: true,
			AWSRegion:     cfg.Judge.AWSRegion,
			AWSProfile:    cfg.Judge.AWSProfile,
		})
		if err != nil {
			return nil, "", nil, fmt.Errorf("create bedrock judge: %w", err)
		}
		return c, c.Model(), c.Tracker(), nil

	default:
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, "", nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or judge.api_key", err)
		}
		c, err := llm.NewClient(llm.ClientConfig{
			Model:     anthropic.Model(cfg.Judge.Model),
			MaxTokens: int64(cfg.Judge.MaxTokens),
			APIKey:    key,
		})
		if err != nil {
			return nil, "", nil, fmt.Errorf("create anthropic judge: %w", err)
		}
		return c, c.Model(), c.Tracker(), nil
	}
}

// newOrchestrator creates the pipeline client for the configured transport.
func newOrchestrator(cfg *config.Config, logger *zap.Logger) (*orchestrator.Client, error) {
	t, err := orchestrator.NewTransport(cfg.Orchestrator.Transport, cfg.Orchestrator.URL)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator transport: %w", err)
	}
	return orchestrator.NewClient(t, cfg.Orchestrator.Timeout, logger), nil
}
