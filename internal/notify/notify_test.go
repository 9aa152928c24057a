package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/queue"
)

type recorder struct {
	got []queue.NotificationPayload
	err error
}

func (r *recorder) EnqueueNotification(_ context.Context, p queue.NotificationPayload) error {
	r.got = append(r.got, p)
	return r.err
}

func TestPublishEncodesPayload(t *testing.T) {
	rec := &recorder{}
	org, id, actor := uuid.New(), uuid.New(), uuid.New()

	NewPublisher(rec).Publish(context.Background(), Notification{
		Event: InvoiceIssued, OrgID: org, ResourceType: "invoice", ResourceID: id, ActorID: &actor,
		Data: map[string]string{"code": "INV-1"},
	})

	require.Len(t, rec.got, 1)
	assert.Equal(t, "invoice.issued", rec.got[0].Event)
	assert.Equal(t, org.String(), rec.got[0].OrgID)
	assert.Equal(t, actor.String(), rec.got[0].ActorID)
	assert.Equal(t, "INV-1", rec.got[0].Data["code"])
}

func TestPublishSwallowsErrors(t *testing.T) {
	rec := &recorder{err: errors.New("redis down")}
	assert.NotPanics(t, func() {
		NewPublisher(rec).Publish(context.Background(), Notification{Event: TicketStatusChanged})
	})

	var nilPub *Publisher
	assert.NotPanics(t, func() {
		nilPub.Publish(context.Background(), Notification{Event: TicketStatusChanged})
	})
}
