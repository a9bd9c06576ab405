package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/qishuigrab/api/internal/service"
	"github.com/qishuigrab/api/internal/storage"
)

// CleanupWorker removes transient assets: delayed per-request deletions
// scheduled by the janitor, and the periodic sweep that collects anything a
// pipeline never got to delete (served archives included).
type CleanupWorker struct {
	store    *storage.Store
	sweepTTL time.Duration
}

// NewCleanupWorker creates a new cleanup worker.
func NewCleanupWorker(store *storage.Store, sweepTTL time.Duration) *CleanupWorker {
	return &CleanupWorker{
		store:    store,
		sweepTTL: sweepTTL,
	}
}

// ProcessFiles handles a delayed cleanup:files task.
func (w *CleanupWorker) ProcessFiles(ctx context.Context, t *asynq.Task) error {
	var payload service.CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal cleanup payload: %w", err)
	}

	// Failures are logged inside Remove; a missing file is not an error,
	// the owning pipeline may have cleaned it already.
	w.store.Remove(payload.Paths...)
	return nil
}

// ProcessSweep handles the periodic cleanup:sweep task.
func (w *CleanupWorker) ProcessSweep(ctx context.Context, t *asynq.Task) error {
	if removed := w.store.SweepOlderThan(w.sweepTTL); removed > 0 {
		log.Printf("Temp sweep removed %d stale entries", removed)
	}
	return nil
}
