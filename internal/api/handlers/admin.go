package handlers

import (
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/rentalcore/internal/audit"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
)

type AdminHandler struct {
	auditSvc *audit.Service
	syncer   *rbac.Syncer
	eval     *rbac.Evaluator
}

func NewAdminHandler(auditSvc *audit.Service, syncer *rbac.Syncer, eval *rbac.Evaluator) *AdminHandler {
	return &AdminHandler{auditSvc: auditSvc, syncer: syncer, eval: eval}
}

// SyncPermissions materializes the role declarations. Configuration errors
// are reported next to the summary; valid pairs are committed regardless.
func (h *AdminHandler) SyncPermissions(w http.ResponseWriter, r *http.Request) {
	if err := h.eval.Authorize(r.Context(), rbac.ActionSync, rbac.ModuleRole, nil); err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := h.syncer.Sync(r.Context())
	resp := map[string]interface{}{"summary": sum}
	if err != nil {
		if len(sum.Skipped) == 0 {
			writeError(w, r, err)
			return
		}
		slog.Warn("permission sync skipped declarations", "skipped", sum.Skipped, "error", err)
		resp["errors"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	if err := h.eval.Authorize(r.Context(), rbac.ActionViewAny, rbac.ModuleAudit, nil); err != nil {
		writeError(w, r, err)
		return
	}
	q := audit.AuditQuery{ResourceType: r.URL.Query().Get("resource_type")}
	var err error
	if q.ResourceID, err = queryID(r, "resource_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if q.UserID, err = queryID(r, "user_id"); err != nil {
		writeError(w, r, err)
		return
	}
	p := page(r)
	q.Limit, q.Offset = p.Limit, p.Offset

	logs, err := h.auditSvc.GetAuditLogs(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list(w, "audit_logs", logs, len(logs))
}
