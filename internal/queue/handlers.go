package queue

import (
	"github.com/hibiken/asynq"
)

type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

// Schedule lists the periodic tasks the worker registers with the asynq
// scheduler, keyed by cron spec.
func Schedule(overdueCron, cleanupCron string) map[string]string {
	return map[string]string{
		TypeInvoiceMarkOverdue: overdueCron,
		TypeUploadsCleanup:     cleanupCron,
	}
}
