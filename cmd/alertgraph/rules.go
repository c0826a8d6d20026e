package main

import (
	"fmt"
	"strings"

	"alertgraph/internal/logger"
	"alertgraph/internal/rules"
)

// loadEngine returns a Sigma engine for path, or a no-op engine when path
// is empty.
func loadEngine(path string) (rules.Engine, error) {
	if strings.TrimSpace(path) == "" {
		return &rules.NoopEngine{}, nil
	}
	engine, stats, err := rules.NewSigmaEngine(path)
	if err != nil {
		return nil, fmt.Errorf("load sigma rules from %s: %w", path, err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedDatasource,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; alert tagging is effectively disabled")
	}
	return engine, nil
}
