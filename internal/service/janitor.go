package service

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/qishuigrab/api/internal/storage"
)

// Task types processed by the cleanup worker.
const (
	TaskTypeCleanupFiles = "cleanup:files"
	TaskTypeCleanupSweep = "cleanup:sweep"
)

// CleanupPayload lists the temp paths a delayed cleanup task should remove.
type CleanupPayload struct {
	Paths []string `json:"paths"`
}

// Janitor schedules deferred removal of temp assets that are served by
// reference: the file must survive long enough for the client to fetch it,
// then disappear.
type Janitor struct {
	asynqClient *asynq.Client
	store       *storage.Store
	grace       time.Duration
}

// NewJanitor creates a janitor with the given grace window. asynqClient may
// be nil when redis is not configured.
func NewJanitor(asynqClient *asynq.Client, store *storage.Store, grace time.Duration) *Janitor {
	return &Janitor{
		asynqClient: asynqClient,
		store:       store,
		grace:       grace,
	}
}

// RemoveAfterGrace schedules deletion of paths once the grace window has
// passed. The delayed asynq task survives process restarts; if enqueueing
// fails (redis down) an in-process timer takes over so the files still get
// removed while the process lives.
func (j *Janitor) RemoveAfterGrace(paths ...string) {
	if len(paths) == 0 {
		return
	}

	if j.asynqClient != nil {
		payload, err := json.Marshal(CleanupPayload{Paths: paths})
		if err == nil {
			_, err = j.asynqClient.Enqueue(
				asynq.NewTask(TaskTypeCleanupFiles, payload),
				asynq.ProcessIn(j.grace),
			)
			if err == nil {
				return
			}
		}
		log.Printf("Failed to enqueue cleanup task, falling back to timer: %v", err)
	}

	store := j.store
	time.AfterFunc(j.grace, func() {
		store.Remove(paths...)
	})
}
