package analysis

import (
	"sort"
	"time"

	"alertgraph/internal/graph/adjacency"
	"alertgraph/pkg/models"
)

// Defaults for Options.
const (
	DefaultWindow      = 24 * time.Hour
	DefaultRecentLimit = 100
)

// Options tunes a run. Zero values fall back to the defaults.
type Options struct {
	Window      time.Duration
	RecentLimit int
	TimelineGap time.Duration
	TimelineMax int
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = DefaultRecentLimit
	}
	if o.TimelineGap <= 0 {
		o.TimelineGap = DefaultTimelineGap
	}
	if o.TimelineMax <= 0 {
		o.TimelineMax = DefaultTimelineMax
	}
	return o
}

// Run windows events to the span ending at the newest timestamp and builds
// the graph, anomalies, summary, timeline and recent-event sample from that
// window. It never fails; empty input yields an empty result.
func Run(events []models.AlertEvent, opts Options) *models.AnalysisResult {
	opts = opts.withDefaults()
	recent := Window(events, opts.Window)

	summary := Summarize(recent)
	return &models.AnalysisResult{
		Graph:                       adjacency.Build(recent),
		Anomalies:                   DetectAnomalies(recent),
		RecentEvents:                newest(recent, opts.RecentLimit),
		MostAggressiveAttacker:      summary.Attacker,
		MostAggressiveAttackerCount: summary.AttackerCount,
		MostAttackedDefender:        summary.Defender,
		MostAttackedDefenderCount:   summary.DefenderCount,
		Timeline:                    BuildTimeline(recent, opts.TimelineGap, opts.TimelineMax),
	}
}

// Window returns the events no older than span before the latest timestamp,
// in their original order.
func Window(events []models.AlertEvent, span time.Duration) []models.AlertEvent {
	if len(events) == 0 {
		return []models.AlertEvent{}
	}
	latest := events[0].Timestamp
	for i := range events[1:] {
		if ts := events[i+1].Timestamp; ts.After(latest) {
			latest = ts
		}
	}
	start := latest.Add(-span)

	out := make([]models.AlertEvent, 0, len(events))
	for _, e := range events {
		if !e.Timestamp.Before(start) {
			out = append(out, e)
		}
	}
	return out
}

func newest(events []models.AlertEvent, limit int) []models.AlertEvent {
	out := make([]models.AlertEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
