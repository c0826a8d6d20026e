package anomalyhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"alertgraph/pkg/models"
)

// Config configures the anomaly webhook.
type Config struct {
	URL      string
	Timeout  time.Duration
	Headers  map[string]string
	MinScore float64
}

// Notification is the webhook body.
type Notification struct {
	AnalysisID string                `json:"analysis_id"`
	Source     string                `json:"source"`
	AnalyzedAt time.Time             `json:"analyzed_at"`
	Anomalies  []models.AnomalyScore `json:"anomalies"`
}

// Writer posts anomalous hosts of each new analysis to a webhook.
type Writer struct {
	url      string
	headers  map[string]string
	minScore float64
	client   *http.Client
}

// NewWriter creates a webhook writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		url:      cfg.URL,
		headers:  cfg.Headers,
		minScore: cfg.MinScore,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string {
	return "webhook"
}

// WriteResult posts the anomalies scoring at least the configured minimum.
// Nothing is sent when none qualify.
func (w *Writer) WriteResult(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil || snap.Result == nil {
		return nil
	}
	selected := make([]models.AnomalyScore, 0, len(snap.Result.Anomalies))
	for _, a := range snap.Result.Anomalies {
		if a.Score >= w.minScore {
			selected = append(selected, a)
		}
	}
	if len(selected) == 0 {
		return nil
	}

	body, err := json.Marshal(Notification{
		AnalysisID: snap.ID,
		Source:     snap.Source,
		AnalyzedAt: snap.AnalyzedAt,
		Anomalies:  selected,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal anomalies: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status %s", resp.Status)
	}
	return nil
}

// Close releases HTTP resources.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
