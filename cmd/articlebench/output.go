package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/ShayCichocki/articlebench/pkg/models"
)

// printStatus prints a status line with a colored symbol.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// stdoutIsTerminal reports whether a TUI can take over stdout.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if m > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dh", h)
}

// printSummary writes the per-metric averages table.
func printSummary(w io.Writer, s models.Summary) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "\nAverage scores (%s):\n", s.RunID)
	if len(s.Metrics) == 0 {
		fmt.Fprintln(w, "  (no rows scored)")
	}
	for _, name := range s.MetricNames() {
		st := s.Metrics[name]
		fmt.Fprintf(w, "  %-18s %6.3f   (min %g, max %g, n=%d)\n", name, st.Mean, st.Min, st.Max, st.Count)
	}
	if s.Failed > 0 {
		color.New(color.FgRed).Fprintf(w, "  %d of %d rows failed\n", s.Failed, s.Total)
	}
}
