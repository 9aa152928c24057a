package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/rentalcore/internal/queue"
)

// UploadCleaner is satisfied by *uploads.Service.
type UploadCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

type CleanupWorker struct {
	uploads UploadCleaner
}

func NewCleanupWorker(c UploadCleaner) *CleanupWorker {
	return &CleanupWorker{uploads: c}
}

func (w *CleanupWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p queue.UploadsCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	var olderThan time.Duration
	if p.OlderThan != "" {
		d, err := time.ParseDuration(p.OlderThan)
		if err != nil {
			return fmt.Errorf("parse older_than: %v: %w", err, asynq.SkipRetry)
		}
		olderThan = d
	}

	n, err := w.uploads.Cleanup(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("cleanup uploads: %w", err)
	}
	slog.Info("upload cleanup done", "removed", n)
	return nil
}
