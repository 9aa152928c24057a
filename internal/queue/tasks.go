package queue

const (
	TypeNotificationDispatch = "notification:dispatch"
	TypeInvoiceMarkOverdue   = "invoice:mark_overdue"
	TypeUploadsCleanup       = "uploads:cleanup"
)

// NotificationPayload describes a committed state change to announce.
type NotificationPayload struct {
	Event        string            `json:"event"`
	OrgID        string            `json:"org_id"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	ActorID      string            `json:"actor_id,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}

// MarkOverduePayload carries the cutoff date; empty means today.
type MarkOverduePayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// UploadsCleanupPayload carries the age after which unattached uploads are
// removed; empty means the configured TTL.
type UploadsCleanupPayload struct {
	OlderThan string `json:"older_than,omitempty"`
}
