package llm

import "sync"

// Per-million-token prices in USD, keyed by provider family.
var pricing = map[string][2]float64{
	"anthropic": {3.0, 15.0},
	"gemini":    {0.30, 2.50},
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	family    string
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker priced at Claude Sonnet rates.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{family: "anthropic"}
}

// NewTokenTrackerFor creates a tracker priced for the given provider family.
// Unknown families fall back to Claude Sonnet rates.
func NewTokenTrackerFor(family string) *TokenTracker {
	if _, ok := pricing[family]; !ok {
		family = "anthropic"
	}
	return &TokenTracker{family: family}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset clears all tracked token usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
}

// Cost estimates the cost in USD.
// This uses approximate list pricing and should be updated as pricing changes.
func (t *TokenTracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := pricing[t.family]
	inputCost := float64(t.inputTok) / 1_000_000 * p[0]
	outputCost := float64(t.outputTok) / 1_000_000 * p[1]
	return inputCost + outputCost
}
