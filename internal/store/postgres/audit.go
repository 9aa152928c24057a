package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

const (
	auditColumns  = "id, org_id, user_id, action, resource_type, resource_id, details, created_at"
	uploadColumns = "id, org_id, path, original_name, size, attached_at, created_at"
)

type auditRepo struct{ s *Store }

// Record stores an audit entry. Entries written from an unscoped context keep
// whatever organization the caller set, possibly none.
func (r auditRepo) Record(ctx context.Context, l *models.AuditLog) error {
	if s := tenant.FromContext(ctx); s.Scoped() && l.OrgID == nil {
		org := s.OrgID
		l.OrgID = &org
	}
	if err := stamp(ctx, &l.ID, nil, &l.CreatedAt); err != nil {
		return err
	}
	l.Details = meta(l.Details)
	return insert(ctx, r.s.conn(ctx), tenant.AuditLogs, auditColumns,
		l.ID, l.OrgID, l.UserID, l.Action, l.ResourceType, l.ResourceID, l.Details, l.CreatedAt)
}

func (r auditRepo) List(ctx context.Context, f store.AuditFilter) ([]models.AuditLog, error) {
	sel := tenant.Select(ctx, tenant.AuditLogs, auditColumns).OrderBy("created_at DESC")
	if f.ResourceType != "" {
		sel.Where("resource_type = ?", f.ResourceType)
	}
	if f.ResourceID != nil {
		sel.Where("resource_id = ?", *f.ResourceID)
	}
	if f.UserID != nil {
		sel.Where("user_id = ?", *f.UserID)
	}
	sql, args := page(sel, f.Page).Build()
	return many[models.AuditLog](ctx, r.s.conn(ctx), sql, args, "audit logs")
}

type uploadRepo struct{ s *Store }

func (r uploadRepo) Create(ctx context.Context, u *models.Upload) error {
	if err := stamp(ctx, &u.ID, &u.OrgID, &u.CreatedAt); err != nil {
		return err
	}
	return insert(ctx, r.s.conn(ctx), tenant.Uploads, uploadColumns,
		u.ID, u.OrgID, u.Path, u.OriginalName, u.Size, u.AttachedAt, u.CreatedAt)
}

func (r uploadRepo) Get(ctx context.Context, id uuid.UUID) (*models.Upload, error) {
	sql, args := tenant.Select(ctx, tenant.Uploads, uploadColumns).Where("id = ?", id).Build()
	return one[models.Upload](ctx, r.s.conn(ctx), sql, args, "upload")
}

func (r uploadRepo) Attach(ctx context.Context, id uuid.UUID, at time.Time) error {
	sql, args := tenant.Update(ctx, tenant.Uploads).Set("attached_at", at).Where("id = ?", id).Build()
	tag, err := r.s.conn(ctx).Exec(ctx, sql, args...)
	return execExpectOne(tag, err, "attach upload %s", id)
}

func (r uploadRepo) Stale(ctx context.Context, before time.Time) ([]models.Upload, error) {
	sql, args := tenant.Select(ctx, tenant.Uploads, uploadColumns).
		Where("attached_at IS NULL").Where("created_at < ?", before).OrderBy("created_at").Build()
	return many[models.Upload](ctx, r.s.conn(ctx), sql, args, "stale uploads")
}

func (r uploadRepo) Delete(ctx context.Context, id uuid.UUID) error {
	sql, args := tenant.Delete(ctx, tenant.Uploads).Where("id = ?", id).Build()
	tag, err := r.s.conn(ctx).Exec(ctx, sql, args...)
	return execExpectOne(tag, err, "delete upload %s", id)
}
