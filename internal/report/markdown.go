package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ShayCichocki/articlebench/pkg/models"
)

// FormatMarkdown renders the per-row score table followed by the averages
// table. Failed rows are listed after the averages.
func FormatMarkdown(results []models.RowResult, summary models.Summary) string {
	metrics := summary.MetricNames()
	var b strings.Builder

	// Rows by metrics, keyed by input row index.
	b.WriteString("|    |")
	for _, m := range metrics {
		fmt.Fprintf(&b, " %s |", m)
	}
	b.WriteString("\n|---:|")
	for range metrics {
		b.WriteString("---:|")
	}
	b.WriteString("\n")
	for _, r := range Succeeded(results) {
		fmt.Fprintf(&b, "| %d |", r.Index)
		for _, m := range metrics {
			if v, ok := r.Scores[m]; ok {
				fmt.Fprintf(&b, " %s |", formatScore(v))
			} else {
				b.WriteString("  |")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\n\nAverages scores:\n\n")
	b.WriteString("|    | mean |\n|:---|---:|\n")
	for _, m := range metrics {
		fmt.Fprintf(&b, "| %s | %s |\n", m, formatScore(summary.Metrics[m].Mean))
	}

	if summary.Failed > 0 {
		fmt.Fprintf(&b, "\n\nFailed rows (%d of %d):\n\n", summary.Failed, summary.Total)
		for _, r := range results {
			if r.OK() {
				continue
			}
			fmt.Fprintf(&b, "- %d: %s\n", r.Index, oneLine(r.Err))
		}
	}
	return b.String()
}

// WriteMarkdown writes FormatMarkdown's output to path.
func WriteMarkdown(path string, results []models.RowResult, summary models.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(FormatMarkdown(results, summary)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(math.Round(v*10000)/10000, 'f', -1, 64)
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "/")
}
