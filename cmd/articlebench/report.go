package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ShayCichocki/articlebench/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [eval_results.md]",
	Short: "Render a results report in the terminal",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := report.ResultsMarkdown
		if len(args) == 1 {
			path = args[0]
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read report: %w", err)
		}

		width := 0
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
		out, err := report.Render(string(data), width)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}
