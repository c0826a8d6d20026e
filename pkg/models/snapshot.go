package models

import "time"

// Snapshot statuses.
const (
	StatusNotAnalyzed   = "not_analyzed"
	StatusSourceMissing = "source_missing"
	StatusOK            = "ok"
)

// RunStats describes the input of one analysis run.
type RunStats struct {
	Lines    int           `json:"lines"`
	Parsed   int           `json:"parsed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
}

// Snapshot is one published analysis outcome. It is never mutated after
// publication.
type Snapshot struct {
	ID         string          `json:"id,omitempty"`
	Status     string          `json:"status"`
	Source     string          `json:"source,omitempty"`
	AnalyzedAt time.Time       `json:"analyzed_at,omitempty"`
	Stats      RunStats        `json:"stats"`
	Result     *AnalysisResult `json:"result,omitempty"`
}
