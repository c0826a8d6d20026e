package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"alertgraph/internal/analysis"
	"alertgraph/internal/logger"
	"alertgraph/internal/output/resultjson"
	"alertgraph/internal/pipeline"
)

type analyzeOptions struct {
	input    string
	tail     int
	output   string
	rules    string
	window   time.Duration
	logLevel string
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a single analysis and print or write the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetOutput(cmd.ErrOrStderr(), logger.ParseLevel(opts.logLevel))
			return runAnalyze(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "logs/fast.log", "Suricata fast.log path")
	cmd.Flags().IntVar(&opts.tail, "tail", 0, "Only parse the last N lines (0 parses the whole file)")
	cmd.Flags().StringVar(&opts.output, "output", "", "Write the result to this file instead of stdout")
	cmd.Flags().StringVar(&opts.rules, "rules", "", "Sigma rule file or directory used to tag alerts")
	cmd.Flags().DurationVar(&opts.window, "window", analysis.DefaultWindow, "Analysis window ending at the newest alert")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts analyzeOptions) error {
	engine, err := loadEngine(opts.rules)
	if err != nil {
		return err
	}

	var writers []pipeline.ResultWriter
	if opts.output != "" {
		w, err := resultjson.NewWriter(opts.output)
		if err != nil {
			return err
		}
		writers = append(writers, w)
	}

	runner := pipeline.NewRunner(pipeline.Config{
		Path:      opts.input,
		TailLines: opts.tail,
		Analysis:  analysis.Options{Window: opts.window},
		Tagger:    engine,
	}, nil, writers...)
	defer runner.Close()

	snap, err := runner.Run(context.Background())
	if errors.Is(err, pipeline.ErrSourceMissing) {
		return fmt.Errorf("log file not found: %s", opts.input)
	}
	if err != nil {
		return err
	}

	if opts.output == "" {
		return resultjson.Encode(cmd.OutOrStdout(), snap)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "analyzed lines=%d events=%d skipped=%d nodes=%d anomalies=%d output=%s\n",
		snap.Stats.Lines, snap.Stats.Parsed, snap.Stats.Skipped,
		len(snap.Result.Graph.Nodes), len(snap.Result.Anomalies), opts.output)
	return nil
}
