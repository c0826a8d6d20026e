package resultjson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"alertgraph/internal/logger"
	"alertgraph/pkg/models"
)

// Writer keeps a file holding the latest snapshot as indented JSON. Each
// write replaces the file through a rename so readers never see a partial
// document.
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter creates the output directory and returns a writer for path.
func NewWriter(path string) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("result output path is empty")
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	logger.Infof("Result JSON writer initialized: %s", path)
	return &Writer{path: path}, nil
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string {
	return "resultjson"
}

// WriteResult replaces the output file with snap.
func (w *Writer) WriteResult(ctx context.Context, snap *models.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".result-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", w.path, err)
	}
	return nil
}

// Close is a no-op; files are closed after every write.
func (w *Writer) Close() error {
	return nil
}

// Encode writes snap to out as indented JSON.
func Encode(out io.Writer, snap *models.Snapshot) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}
