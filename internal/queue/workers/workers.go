// Package workers holds the asynq task handlers run by the worker process.
package workers

import "github.com/nikhilbhutani/rentalcore/internal/queue"

// Register wires every handler into reg.
func Register(reg *queue.HandlersRegistry, n *NotificationWorker, o *OverdueWorker, c *CleanupWorker) {
	reg.Register(queue.TypeNotificationDispatch, n)
	reg.Register(queue.TypeInvoiceMarkOverdue, o)
	reg.Register(queue.TypeUploadsCleanup, c)
}
