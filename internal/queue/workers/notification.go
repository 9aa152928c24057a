package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/queue"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

// AuditLogger is satisfied by *audit.Service.
type AuditLogger interface {
	Log(ctx context.Context, entry audit.LogEntry) error
}

// NotificationWorker records each dispatched notification in the owning
// organization's audit trail. Delivery channels consume that trail.
type NotificationWorker struct {
	audit AuditLogger
}

func NewNotificationWorker(a AuditLogger) *NotificationWorker {
	return &NotificationWorker{audit: a}
}

func (w *NotificationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p queue.NotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	orgID, err := uuid.Parse(p.OrgID)
	if err != nil {
		return fmt.Errorf("parse org ID: %v: %w", err, asynq.SkipRetry)
	}
	resourceID, err := uuid.Parse(p.ResourceID)
	if err != nil {
		return fmt.Errorf("parse resource ID: %v: %w", err, asynq.SkipRetry)
	}

	details := models.Meta{"event": p.Event}
	if p.ActorID != "" {
		details["actor_id"] = p.ActorID
	}
	for k, v := range p.Data {
		details[k] = v
	}

	ctx = tenant.WithOrg(ctx, orgID)
	if err := w.audit.Log(ctx, audit.LogEntry{
		OrgID:        orgID,
		Action:       "notified",
		ResourceType: p.ResourceType,
		ResourceID:   &resourceID,
		Details:      details,
	}); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	slog.Info("notification dispatched", "event", p.Event, "org_id", orgID, "resource_id", resourceID)
	return nil
}
