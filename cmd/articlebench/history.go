package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/articlebench/internal/state"
)

var (
	historyLimit int
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs or show one run's rows",
	Long: `Without arguments, lists the most recent evaluation runs.
With a run ID, shows that run's per-row scores and errors.

Use --purge to delete runs older than a duration (e.g. --purge 720h).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list (0 for all)")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete runs older than this duration")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dbPath := cfg.State.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No runs recorded yet. Run 'articlebench run' to start.")
		return nil
	}

	db, err := state.OpenAndMigrate(dbPath)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer db.Close()

	if historyPurge > 0 {
		n, err := db.PurgeOldRuns(historyPurge)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Purged %d runs older than %s", n, formatDuration(historyPurge)), color.FgGreen)
		if len(args) == 0 {
			return nil
		}
	}

	if len(args) == 1 {
		return displayRun(db, args[0])
	}
	return displayRuns(db, historyLimit)
}

func displayRuns(db *state.DB, limit int) error {
	runs, err := db.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tKIND\tSTATUS\tROWS\tFAILED\tDURATION\tJUDGE")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = formatDuration(r.FinishedAt.Sub(r.StartedAt))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Kind, statusColor(r.Status).Sprint(r.Status), r.Total, r.Failed, duration, r.JudgeModel)
	}
	return w.Flush()
}

func displayRun(db *state.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}

	bold := color.New(color.Bold)
	bold.Printf("Run %s\n", run.ID)
	fmt.Printf("  Kind:    %s\n", run.Kind)
	fmt.Printf("  Inputs:  %s\n", run.InputsPath)
	fmt.Printf("  Judge:   %s\n", run.JudgeModel)
	fmt.Printf("  Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Printf("  Status:  %s\n", statusColor(run.Status).Sprint(run.Status))
	fmt.Printf("  Rows:    %d (%d failed)\n", run.Total, run.Failed)
	if run.InputTokens+run.OutputTokens > 0 {
		fmt.Printf("  Tokens:  %d in / %d out\n", run.InputTokens, run.OutputTokens)
	}
	fmt.Println()

	rows, err := db.GetResults(id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tREQUEST\tSCORES\tERROR")
	for _, r := range rows {
		var scores []string
		for _, k := range r.Scores.Metrics() {
			scores = append(scores, fmt.Sprintf("%s=%g", strings.TrimPrefix(k, "gpt_"), r.Scores[k]))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.RowIndex, truncate(r.Request, 40), strings.Join(scores, " "), truncate(r.Error, 60))
	}
	return w.Flush()
}

func statusColor(s state.RunStatus) *color.Color {
	switch s {
	case state.RunCompleted:
		return color.New(color.FgGreen)
	case state.RunFailed:
		return color.New(color.FgRed)
	case state.RunCanceled:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func truncate(s string, n int) string {
	runes := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n-3]) + "..."
}
