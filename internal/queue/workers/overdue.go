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

// OverdueMarker is satisfied by *invoice.Service.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

type OverdueWorker struct {
	invoices OverdueMarker
	now      func() time.Time
}

func NewOverdueWorker(m OverdueMarker) *OverdueWorker {
	return &OverdueWorker{invoices: m, now: func() time.Time { return time.Now().UTC() }}
}

func (w *OverdueWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p queue.MarkOverduePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	asOf := w.now()
	if p.AsOf != "" {
		d, err := time.Parse(time.DateOnly, p.AsOf)
		if err != nil {
			return fmt.Errorf("parse as_of: %v: %w", err, asynq.SkipRetry)
		}
		asOf = d
	}
	// an invoice due today is not yet late
	asOf = time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

	n, err := w.invoices.MarkOverdue(ctx, asOf)
	if err != nil {
		return fmt.Errorf("mark overdue: %w", err)
	}
	slog.Info("overdue task done", "as_of", asOf.Format(time.DateOnly), "marked", n)
	return nil
}
