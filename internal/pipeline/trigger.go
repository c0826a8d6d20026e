package pipeline

import (
	"context"
	"errors"
	"time"
)

// ListenTriggers runs the pipeline once per message popped from src until
// ctx is cancelled. Pop failures are retried after a short pause.
func (r *Runner) ListenTriggers(ctx context.Context, src TriggerSource) error {
	log.Infof("Trigger listener started")
	for {
		payload, err := src.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Errorf("Failed to pop trigger message: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		log.Infof("Re-analysis triggered (%d byte payload)", len(payload))
		if _, err := r.Run(ctx); err != nil && !errors.Is(err, ErrSourceMissing) {
			log.Errorf("Triggered analysis failed: %v", err)
		}
	}
}
