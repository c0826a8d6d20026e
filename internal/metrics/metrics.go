package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"alertgraph/pkg/models"
)

const namespace = "alertgraph"

// Run outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeSourceMissing = "source_missing"
	OutcomeError         = "error"
)

// Metrics holds the collectors for analysis runs. A nil *Metrics is a no-op.
type Metrics struct {
	Runs          *prometheus.CounterVec
	EventsParsed  prometheus.Counter
	LinesSkipped  prometheus.Counter
	SinkFailures  *prometheus.CounterVec
	RunDuration   prometheus.Gauge
	LastSuccess   prometheus.Gauge
	ResultEntries *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs by outcome.",
		}, []string{"outcome"}),
		EventsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_parsed_total",
			Help:      "Alert lines parsed into events.",
		}),
		LinesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_skipped_total",
			Help:      "Non-empty lines that did not parse.",
		}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Result sink write failures.",
		}, []string{"sink"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last successful analysis run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful analysis run.",
		}),
		ResultEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "result_entries",
			Help:      "Sizes of the last published result.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.EventsParsed, m.LinesSkipped, m.SinkFailures, m.RunDuration, m.LastSuccess, m.ResultEntries)
	}
	return m
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

// ObserveSnapshot records the input and output sizes of a published run.
func (m *Metrics) ObserveSnapshot(s *models.Snapshot) {
	if m == nil || s == nil || s.Result == nil {
		return
	}
	m.EventsParsed.Add(float64(s.Stats.Parsed))
	m.LinesSkipped.Add(float64(s.Stats.Skipped))
	m.RunDuration.Set(s.Stats.Duration.Seconds())
	m.LastSuccess.Set(float64(s.AnalyzedAt.Unix()))

	r := s.Result
	m.ResultEntries.WithLabelValues("nodes").Set(float64(len(r.Graph.Nodes)))
	m.ResultEntries.WithLabelValues("edges").Set(float64(len(r.Graph.Edges)))
	m.ResultEntries.WithLabelValues("anomalies").Set(float64(len(r.Anomalies)))
	m.ResultEntries.WithLabelValues("timeline").Set(float64(len(r.Timeline)))
	m.ResultEntries.WithLabelValues("recent_events").Set(float64(len(r.RecentEvents)))
}

// ObserveSinkFailure counts a failed sink write.
func (m *Metrics) ObserveSinkFailure(sink string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(sink).Inc()
}

