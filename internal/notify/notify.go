// Package notify announces committed state changes through the task queue.
// Delivery channels live outside this service; the worker only records the
// dispatch.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/queue"
)

type Event string

const (
	InvoiceIssued       Event = "invoice.issued"
	InvoicePaid         Event = "invoice.paid"
	InvoiceOverdue      Event = "invoice.overdue"
	TicketStatusChanged Event = "ticket.status_changed"
	AdjustmentDecided   Event = "adjustment.decided"
	HandoverConfirmed   Event = "handover.confirmed"
	MemberJoined        Event = "contract.member_joined"
)

type Notification struct {
	Event        Event
	OrgID        uuid.UUID
	ResourceType string
	ResourceID   uuid.UUID
	ActorID      *uuid.UUID
	Data         map[string]string
}

func (n Notification) payload() queue.NotificationPayload {
	p := queue.NotificationPayload{
		Event:        string(n.Event),
		OrgID:        n.OrgID.String(),
		ResourceType: n.ResourceType,
		ResourceID:   n.ResourceID.String(),
		Data:         n.Data,
	}
	if n.ActorID != nil {
		p.ActorID = n.ActorID.String()
	}
	return p
}

// Enqueuer is satisfied by *queue.Client.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, payload queue.NotificationPayload) error
}

// Publisher must only be called after the transaction that produced the
// change has committed. A nil Publisher drops everything.
type Publisher struct {
	q Enqueuer
}

func NewPublisher(q Enqueuer) *Publisher {
	return &Publisher{q: q}
}

// Publish never fails the caller: the change is already committed, so an
// enqueue failure is logged and dropped.
func (p *Publisher) Publish(ctx context.Context, n Notification) {
	if p == nil || p.q == nil {
		return
	}
	if err := p.q.EnqueueNotification(ctx, n.payload()); err != nil {
		slog.Warn("enqueue notification", "event", n.Event, "resource_id", n.ResourceID, "error", err)
	}
}
