package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"alertgraph/internal/analysis"
	"alertgraph/internal/logger"
	"alertgraph/internal/metrics"
	"alertgraph/internal/transform/fastlog"
	"alertgraph/pkg/models"
)

// ErrSourceMissing is returned when the alert log does not exist.
var ErrSourceMissing = errors.New("source file not found")

// SinkTimeout bounds one fan-out of a published snapshot to all writers.
const SinkTimeout = 30 * time.Second

var log = logger.Named("pipeline")

// Config configures a Runner.
type Config struct {
	Path      string
	TailLines int
	Analysis  analysis.Options
	Tagger    fastlog.Tagger
}

// Runner re-analyzes the alert log on demand and publishes each result by
// swapping an immutable snapshot pointer. Readers never see a partial result.
type Runner struct {
	cfg     Config
	writers []ResultWriter
	metrics *metrics.Metrics
	current atomic.Pointer[models.Snapshot]
	fanMu   sync.Mutex
	now     func() time.Time
}

// NewRunner creates a runner. Writers are called, in order, after every
// successful publish.
func NewRunner(cfg Config, m *metrics.Metrics, writers ...ResultWriter) *Runner {
	r := &Runner{
		cfg:     cfg,
		writers: writers,
		metrics: m,
		now:     time.Now,
	}
	r.current.Store(&models.Snapshot{Status: models.StatusNotAnalyzed, Source: cfg.Path})
	return r
}

// AddWriter appends a sink. It must be called before the first Run.
func (r *Runner) AddWriter(w ResultWriter) {
	r.writers = append(r.writers, w)
}

// Current returns the most recently published snapshot.
func (r *Runner) Current() *models.Snapshot {
	return r.current.Load()
}

// Run reads the whole source, analyzes it and publishes the result. On
// failure the previously published snapshot stays in place.
func (r *Runner) Run(ctx context.Context) (*models.Snapshot, error) {
	start := r.now()

	f, err := os.Open(r.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		r.metrics.ObserveRun(metrics.OutcomeSourceMissing)
		r.markMissing()
		log.Warnf("Log file not found: %s", r.cfg.Path)
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, r.cfg.Path)
	}
	if err != nil {
		r.metrics.ObserveRun(metrics.OutcomeError)
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	log.Infof("Parsing log file: %s (tail_lines=%d)", r.cfg.Path, r.cfg.TailLines)
	events, stats, err := fastlog.Parse(f, fastlog.Options{TailLines: r.cfg.TailLines, Tagger: r.cfg.Tagger})
	if err != nil {
		r.metrics.ObserveRun(metrics.OutcomeError)
		return nil, fmt.Errorf("read source %s: %w", r.cfg.Path, err)
	}
	log.Infof("Parsed %d events (%d lines, %d skipped)", stats.Parsed, stats.Lines, stats.Skipped)

	result := analysis.Run(events, r.cfg.Analysis)
	finished := r.now()
	snap := &models.Snapshot{
		ID:         uuid.NewString(),
		Status:     models.StatusOK,
		Source:     r.cfg.Path,
		AnalyzedAt: finished,
		Stats: models.RunStats{
			Lines:    stats.Lines,
			Parsed:   stats.Parsed,
			Skipped:  stats.Skipped,
			Duration: finished.Sub(start),
		},
		Result: result,
	}
	r.current.Store(snap)
	r.metrics.ObserveRun(metrics.OutcomeOK)
	r.metrics.ObserveSnapshot(snap)
	log.Infof("Published analysis %s: nodes=%d edges=%d anomalies=%d timeline=%d",
		snap.ID, len(result.Graph.Nodes), len(result.Graph.Edges), len(result.Anomalies), len(result.Timeline))

	r.fanOut(ctx, snap)
	return snap, nil
}

// markMissing records the missing source only while no result has ever
// been published.
func (r *Runner) markMissing() {
	missing := &models.Snapshot{Status: models.StatusSourceMissing, Source: r.cfg.Path}
	for {
		cur := r.current.Load()
		if cur.Status == models.StatusOK {
			return
		}
		if r.current.CompareAndSwap(cur, missing) {
			return
		}
	}
}

// fanOut hands snap to every writer unless a newer snapshot has been
// published meanwhile, so sinks end on the same snapshot as Current. Writes
// are detached from the caller's cancellation and bounded by SinkTimeout.
func (r *Runner) fanOut(ctx context.Context, snap *models.Snapshot) {
	r.fanMu.Lock()
	defer r.fanMu.Unlock()

	if r.current.Load() != snap {
		log.Debugf("Skipping sinks for superseded analysis %s", snap.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SinkTimeout)
	defer cancel()
	for _, w := range r.writers {
		if err := w.WriteResult(ctx, snap); err != nil {
			r.metrics.ObserveSinkFailure(w.Name())
			log.Errorf("Failed to write result to %s: %v", w.Name(), err)
		}
	}
}

// Close releases writer resources.
func (r *Runner) Close() error {
	var errs []error
	for _, w := range r.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}
