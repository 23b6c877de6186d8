package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/articlebench/internal/dataset"
	"github.com/ShayCichocki/articlebench/internal/report"
	"github.com/ShayCichocki/articlebench/internal/runner"
	"github.com/ShayCichocki/articlebench/internal/state"
	"github.com/ShayCichocki/articlebench/pkg/models"
)

var (
	scoreOut         string
	scoreHeadless    bool
	scoreStrict      bool
	scoreConcurrency int
	scoreNoHistory   bool
	scoreWatch       bool
)

var scoreCmd = &cobra.Command{
	Use:   "score [eval_data.jsonl]",
	Short: "Score an existing data file without calling the orchestrator",
	Long: `Re-run the judge over the query, context and response records written
by a previous run (eval_data.jsonl), producing fresh eval_results files.

With --watch, keeps running and re-scores whenever the data file changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreOut, "out", "o", "", "Output directory (default: the data file's directory)")
	scoreCmd.Flags().BoolVar(&scoreHeadless, "headless", false, "Disable the progress display")
	scoreCmd.Flags().BoolVar(&scoreStrict, "strict", false, "Exit with an error if any row fails")
	scoreCmd.Flags().IntVarP(&scoreConcurrency, "concurrency", "c", 0, "Rows in flight (default: run.concurrency, or min(32, CPUs+4))")
	scoreCmd.Flags().BoolVar(&scoreNoHistory, "no-history", false, "Do not record the run in the history database")
	scoreCmd.Flags().BoolVarP(&scoreWatch, "watch", "w", false, "Re-score whenever the data file changes")
}

func runScore(cmd *cobra.Command, args []string) error {
	dataPath := report.DataFile
	if len(args) == 1 {
		dataPath = args[0]
	}
	out := scoreOut
	if out == "" {
		out = filepath.Dir(dataPath)
	}

	// A watch session owns the terminal for a long time; skip the TUI.
	s, cleanup, err := prepareRun(cmd, out, scoreConcurrency, scoreHeadless || scoreWatch, scoreStrict, scoreNoHistory)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := newJudge(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}

	if !scoreWatch {
		return scoreOnce(ctx, s, j, dataPath)
	}

	printStatus("→", fmt.Sprintf("Watching %s (Ctrl+C to stop)", dataPath), color.FgCyan)
	if err := scoreOnce(ctx, s, j, dataPath); err != nil {
		s.logger.Warn("score failed", zap.Error(err))
	}
	err = dataset.Watch(ctx, dataPath, dataset.DefaultDebounce, func() {
		if err := scoreOnce(ctx, s, j, dataPath); err != nil {
			s.logger.Warn("score failed", zap.Error(err))
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch %s: %w", dataPath, err)
	}
	return nil
}

func scoreOnce(ctx context.Context, s *runSettings, j *judge, dataPath string) error {
	start := time.Now()

	records, err := dataset.ReadRecords(dataPath)
	if err != nil {
		return fmt.Errorf("read run data: %w", err)
	}

	r := &runner.Runner{
		Evaluator:   j.evaluator,
		Concurrency: s.cfg.Run.Concurrency,
		RowTimeout:  s.cfg.Run.RowTimeout,
		Logger:      s.logger,
	}
	run := &state.Run{
		ID:         report.NewRunID(start),
		Kind:       state.KindRecords,
		InputsPath: dataPath,
		JudgeModel: j.model,
		StartedAt:  start,
	}
	title := fmt.Sprintf("Scoring %d records from %s", len(records), dataPath)
	results, runErr := execute(ctx, s, r, title, len(records), func(ctx context.Context) ([]models.RowResult, error) {
		return r.EvaluateRecords(ctx, records)
	})

	if err := finishRun(s, run, j, results, runErr, false); err != nil {
		return err
	}
	fmt.Printf("Finished evaluate in %.2fs\n", time.Since(start).Seconds())
	return exitStatus(s, results, runErr)
}
