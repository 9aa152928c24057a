package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/queue"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type auditRecorder struct {
	entries []audit.LogEntry
	orgs    []uuid.UUID
}

func (r *auditRecorder) Log(ctx context.Context, e audit.LogEntry) error {
	r.entries = append(r.entries, e)
	r.orgs = append(r.orgs, tenant.FromContext(ctx).OrgID)
	return nil
}

type overdueFunc func(ctx context.Context, asOf time.Time) (int, error)

func (f overdueFunc) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) { return f(ctx, asOf) }

type cleanupFunc func(ctx context.Context, olderThan time.Duration) (int, error)

func (f cleanupFunc) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	return f(ctx, olderThan)
}

func task(t *testing.T, typ string, payload any) *asynq.Task {
	t.Helper()
	tk, err := queue.NewTask(typ, payload)
	require.NoError(t, err)
	return tk
}

func TestNotificationWorkerRecordsAudit(t *testing.T) {
	rec := &auditRecorder{}
	org, id := uuid.New(), uuid.New()

	err := NewNotificationWorker(rec).ProcessTask(context.Background(), task(t, queue.TypeNotificationDispatch, queue.NotificationPayload{
		Event: "invoice.issued", OrgID: org.String(), ResourceType: "invoice", ResourceID: id.String(),
		Data: map[string]string{"code": "INV-1"},
	}))
	require.NoError(t, err)

	require.Len(t, rec.entries, 1)
	e := rec.entries[0]
	assert.Equal(t, "notified", e.Action)
	assert.Equal(t, org, e.OrgID)
	assert.Equal(t, id, *e.ResourceID)
	code, _ := e.Details.String("code")
	assert.Equal(t, "INV-1", code)
	assert.Equal(t, org, rec.orgs[0], "runs under the organization scope")
}

func TestNotificationWorkerSkipsRetryOnBadPayload(t *testing.T) {
	w := NewNotificationWorker(&auditRecorder{})

	err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeNotificationDispatch, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = w.ProcessTask(context.Background(), task(t, queue.TypeNotificationDispatch, queue.NotificationPayload{OrgID: "nope"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestOverdueWorkerParsesDate(t *testing.T) {
	var got time.Time
	w := NewOverdueWorker(overdueFunc(func(_ context.Context, asOf time.Time) (int, error) {
		got = asOf
		return 2, nil
	}))

	require.NoError(t, w.ProcessTask(context.Background(), task(t, queue.TypeInvoiceMarkOverdue, queue.MarkOverduePayload{AsOf: "2026-04-10"})))
	assert.Equal(t, time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC), got)

	w.now = func() time.Time { return time.Date(2026, time.May, 3, 15, 4, 5, 0, time.UTC) }
	require.NoError(t, w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeInvoiceMarkOverdue, nil)))
	assert.Equal(t, time.Date(2026, time.May, 3, 0, 0, 0, 0, time.UTC), got)

	err := w.ProcessTask(context.Background(), task(t, queue.TypeInvoiceMarkOverdue, queue.MarkOverduePayload{AsOf: "10/04/2026"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestOverdueWorkerPropagatesFailure(t *testing.T) {
	boom := errors.New("db down")
	w := NewOverdueWorker(overdueFunc(func(context.Context, time.Time) (int, error) { return 0, boom }))
	assert.ErrorIs(t, w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeInvoiceMarkOverdue, nil)), boom)
}

func TestCleanupWorker(t *testing.T) {
	var got time.Duration
	w := NewCleanupWorker(cleanupFunc(func(_ context.Context, d time.Duration) (int, error) {
		got = d
		return 1, nil
	}))

	require.NoError(t, w.ProcessTask(context.Background(), task(t, queue.TypeUploadsCleanup, queue.UploadsCleanupPayload{OlderThan: "36h"})))
	assert.Equal(t, 36*time.Hour, got)

	require.NoError(t, w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeUploadsCleanup, nil)))
	assert.Zero(t, got, "empty payload falls back to the configured TTL")
}
