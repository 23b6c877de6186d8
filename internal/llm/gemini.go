package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient judges with Google's Gemini API.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int32
	tracker   *TokenTracker
}

// GeminiConfig contains configuration for creating a GeminiClient.
type GeminiConfig struct {
	APIKey string
	// Model defaults to gemini-2.5-flash.
	Model     string
	MaxTokens int32
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string
	Tracker *TokenTracker
}

// NewGeminiClient creates a new Gemini judge client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewTokenTrackerFor("gemini")
	}

	return &GeminiClient{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		tracker:   tracker,
	}, nil
}

// Complete sends a single-turn judge prompt at temperature 0.
func (g *GeminiClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: g.maxTokens,
	}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), gc)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp.UsageMetadata != nil {
		g.tracker.Add(int64(resp.UsageMetadata.PromptTokenCount), int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string {
	return g.model
}

// Tracker returns the token tracker for this client.
func (g *GeminiClient) Tracker() *TokenTracker {
	return g.tracker
}
