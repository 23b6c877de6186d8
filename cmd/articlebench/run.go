package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/articlebench/internal/config"
	"github.com/ShayCichocki/articlebench/internal/dataset"
	"github.com/ShayCichocki/articlebench/internal/report"
	"github.com/ShayCichocki/articlebench/internal/runner"
	"github.com/ShayCichocki/articlebench/internal/state"
	"github.com/ShayCichocki/articlebench/internal/tui"
	"github.com/ShayCichocki/articlebench/pkg/models"
)

var (
	runOut         string
	runHeadless    bool
	runStrict      bool
	runConcurrency int
	runNoHistory   bool
)

var runCmd = &cobra.Command{
	Use:   "run [inputs]",
	Short: "Run the orchestrator over input rows and score the articles",
	Long: `Send every row of the inputs file to the article orchestrator, then
score each (query, context, response) triple with the judge.

The inputs file is JSONL (or a YAML list) of {"request", "instructions"}
objects. It defaults to run.inputs from the config (eval_inputs.jsonl).

Rows run concurrently; a failing row is reported and does not stop the run.
Use --strict to exit non-zero when any row fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Output directory (default: run.output_dir)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Disable the progress display")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "Exit with an error if any row fails")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", 0, "Rows in flight (default: run.concurrency, or min(32, CPUs+4))")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record the run in the history database")
}

// runSettings is what run and score share once flags and config are merged.
type runSettings struct {
	cfg      *config.Config
	logger   *zap.Logger
	useTUI   bool
	outDir   string
	strict   bool
	noRecord bool
}

func prepareRun(cmd *cobra.Command, out string, concurrency int, headless, strict, noRecord bool) (*runSettings, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Run.Concurrency = concurrency
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	useTUI := !headless && stdoutIsTerminal()
	logger, cleanup, err := newLogger(cfg, useTUI)
	if err != nil {
		return nil, nil, err
	}

	outDir := out
	if outDir == "" {
		outDir = cfg.Run.OutputDir
	}
	return &runSettings{
		cfg:      cfg,
		logger:   logger,
		useTUI:   useTUI,
		outDir:   outDir,
		strict:   strict,
		noRecord: noRecord,
	}, cleanup, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	start := time.Now()

	s, cleanup, err := prepareRun(cmd, runOut, runConcurrency, runHeadless, runStrict, runNoHistory)
	if err != nil {
		return err
	}
	defer cleanup()

	inputsPath := s.cfg.Run.Inputs
	if len(args) == 1 {
		inputsPath = args[0]
	}
	inputs, err := dataset.ReadInputs(inputsPath)
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := newJudge(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(s.cfg, s.logger)
	if err != nil {
		return err
	}

	r := &runner.Runner{
		Orchestrator: orch,
		Evaluator:    j.evaluator,
		Concurrency:  s.cfg.Run.Concurrency,
		RowTimeout:   s.cfg.Run.RowTimeout,
		Logger:       s.logger,
	}

	run := &state.Run{
		ID:         report.NewRunID(start),
		Kind:       state.KindOrchestrator,
		InputsPath: inputsPath,
		JudgeModel: j.model,
		StartedAt:  start,
	}
	title := fmt.Sprintf("Evaluating %d rows from %s", len(inputs), inputsPath)
	results, runErr := execute(ctx, s, r, title, len(inputs), func(ctx context.Context) ([]models.RowResult, error) {
		return r.EvaluateOrchestrator(ctx, inputs)
	})

	if err := finishRun(s, run, j, results, runErr, true); err != nil {
		return err
	}
	fmt.Printf("Finished evaluate in %.2fs\n", time.Since(start).Seconds())
	return exitStatus(s, results, runErr)
}

// execute runs fn, behind the progress display when the terminal allows it.
func execute(ctx context.Context, s *runSettings, r *runner.Runner, title string, total int,
	fn func(context.Context) ([]models.RowResult, error)) ([]models.RowResult, error) {
	if !s.useTUI {
		printStatus("→", title, color.FgCyan)
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan runner.ProgressEvent, 64)
	r.Progress = events

	model := tui.NewProgressModel(title, total)
	program := tea.NewProgram(model)

	forwarded := make(chan struct{})
	go func() {
		tui.Forward(program, events)
		close(forwarded)
	}()

	type outcome struct {
		results []models.RowResult
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := fn(ctx)
		close(events)
		<-forwarded
		program.Send(tui.RunDoneMsg{Err: err})
		done <- outcome{results, err}
	}()

	_, tuiErr := program.Run()
	if tuiErr != nil || model.Aborted() {
		cancel()
	}
	out := <-done
	if tuiErr != nil && out.err == nil {
		s.logger.Warn("progress display failed", zap.Error(tuiErr))
	}
	return out.results, out.err
}

// finishRun writes the output files, prints the summary and records the run.
func finishRun(s *runSettings, run *state.Run, j *judge, results []models.RowResult, runErr error, withData bool) error {
	summary := report.Summarize(run.ID, results)

	files, err := report.WriteAll(s.outDir, results, summary, withData)
	if err != nil {
		return err
	}
	for _, f := range []string{files.Data, files.Results, files.Markdown} {
		if f != "" {
			printStatus("✓", "Wrote "+f, color.FgGreen)
		}
	}
	printSummary(os.Stdout, summary)

	if s.noRecord {
		return nil
	}
	recordRun(s, run, j, results, summary, runErr)
	return nil
}

// recordRun stores the run in the history database. Failures are logged,
// not returned: the output files are already written.
func recordRun(s *runSettings, run *state.Run, j *judge, results []models.RowResult, summary models.Summary, runErr error) {
	db, err := state.OpenAndMigrate(s.cfg.State.DBPath)
	if err != nil {
		s.logger.Warn("open run history", zap.Error(err))
		return
	}
	defer db.Close()

	requested := run.ID
	if err := db.CreateRun(run); err != nil {
		s.logger.Warn("record run", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	if run.ID != requested {
		printStatus("→", fmt.Sprintf("Recorded as %s (%s was taken)", run.ID, requested), color.FgCyan)
	}
	if err := db.SaveResults(run.ID, results); err != nil {
		s.logger.Warn("record results", zap.String("run_id", run.ID), zap.Error(err))
	}

	run.Total = summary.Total
	run.Failed = summary.Failed
	run.Status = state.RunCompleted
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		run.Status = state.RunCanceled
	case runErr != nil:
		run.Status = state.RunFailed
	}
	if j.tracker != nil {
		run.InputTokens, run.OutputTokens = j.tracker.Total()
		s.logger.Info("judge usage",
			zap.Int64("input_tokens", run.InputTokens),
			zap.Int64("output_tokens", run.OutputTokens),
			zap.Int("calls", j.tracker.Calls()),
			zap.Float64("est_cost_usd", j.tracker.Cost()))
	}
	if err := db.FinishRun(run); err != nil {
		s.logger.Warn("finish run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// exitStatus turns the run outcome into the command's error.
func exitStatus(s *runSettings, results []models.RowResult, runErr error) error {
	if runErr != nil {
		return fmt.Errorf("evaluation stopped: %w", runErr)
	}
	if s.strict {
		for _, r := range results {
			if !r.OK() {
				return fmt.Errorf("row %d failed: %s", r.Index, r.Err)
			}
		}
	}
	return nil
}
