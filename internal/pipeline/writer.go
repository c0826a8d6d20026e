package pipeline

import (
	"context"

	"alertgraph/pkg/models"
)

// ResultWriter receives every newly published snapshot.
type ResultWriter interface {
	Name() string
	WriteResult(ctx context.Context, snap *models.Snapshot) error
	Close() error
}

// TriggerSource yields re-analysis requests. A nil payload with a nil error
// means nothing arrived before the source's timeout.
type TriggerSource interface {
	Pop(ctx context.Context) ([]byte, error)
}
