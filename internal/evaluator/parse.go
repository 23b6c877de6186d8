package evaluator

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Common errors for judge reply parsing.
var (
	// ErrMalformedResponse indicates the judge reply could not be parsed.
	ErrMalformedResponse = errors.New("malformed judge response")
	// ErrScoreOutOfRange indicates a score was outside the valid 1-5 range.
	ErrScoreOutOfRange = errors.New("score out of range (must be 1-5)")
	// ErrMissingScore indicates no score was found in the reply.
	ErrMissingScore = errors.New("missing score")
)

// Score bounds for every judge metric.
const (
	MinScore = 1
	MaxScore = 5
)

// Patterns tried in order; the first match wins.
var scorePatterns = []*regexp.Regexp{
	// <score>4</score>
	regexp.MustCompile(`(?is)<score>\s*(-?\d+(?:\.\d+)?)\s*</score>`),
	// "Score: 4", "score = 4.5", "**Score**: 4"
	regexp.MustCompile(`(?i)score\W{0,4}[:=]\s*\**\s*(-?\d+(?:\.\d+)?)`),
	// "4/5", "4 / 5"
	regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*/\s*5\b`),
	// a reply that is just the number
	regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*\.?\s*$`),
}

// ParseScore extracts a 1-5 score from a judge reply.
//
// Returns an error if:
//   - the reply is empty (ErrMalformedResponse)
//   - no recognised score format is present (ErrMissingScore)
//   - the score is outside 1-5 (ErrScoreOutOfRange)
func ParseScore(reply string) (float64, error) {
	if strings.TrimSpace(reply) == "" {
		return 0, ErrMalformedResponse
	}

	for _, p := range scorePatterns {
		matches := p.FindStringSubmatch(reply)
		if len(matches) < 2 {
			continue
		}
		val, err := strconv.ParseFloat(matches[1], 64)
		if err != nil {
			return 0, ErrMalformedResponse
		}
		if val < MinScore || val > MaxScore {
			return 0, ErrScoreOutOfRange
		}
		return val, nil
	}

	return 0, ErrMissingScore
}
