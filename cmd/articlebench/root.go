package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/articlebench/internal/config"
	"github.com/ShayCichocki/articlebench/internal/logging"
)

var (
	cfgFile string
	verbose bool
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "articlebench",
	Short: "Evaluate an article-writing agent pipeline with an LLM judge",
	Long: `articlebench sends writing requests to a hosted article orchestrator,
collects the research, product context and final article for each request,
and scores them with an LLM judge.

Each run writes:
- eval_data.jsonl     query, context and response per row (re-scorable)
- eval_results.jsonl  judged scores per row
- eval_results.md     score table plus per-metric averages

Runs are recorded in a local history database.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: user config plus .articlebench.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig honours --config, falling back to the layered config.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from config and global flags.
func newLogger(cfg *config.Config, quiet bool) (*zap.Logger, func(), error) {
	file := logFile
	if file == "" {
		file = cfg.Logging.File
	}
	logger, cleanup, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Verbose: verbose,
		File:    file,
		Quiet:   quiet,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, cleanup, nil
}
