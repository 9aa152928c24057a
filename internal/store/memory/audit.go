package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

type auditRepo struct{ s *Store }

func (r auditRepo) Record(ctx context.Context, l *models.AuditLog) error {
	return r.s.with(ctx, func(st *state) error {
		if s := tenant.FromContext(ctx); s.Scoped() && l.OrgID == nil {
			org := s.OrgID
			l.OrgID = &org
		}
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = r.s.now()
		}
		l.Details = cloneMeta(l.Details)
		st.audit.insert(*l, st.next())
		return nil
	})
}

func (r auditRepo) List(ctx context.Context, f store.AuditFilter) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := r.s.with(ctx, func(st *state) error {
		rows := st.audit.list(ctx, tenant.ActiveOnly, func(l models.AuditLog) bool {
			switch {
			case f.ResourceType != "" && l.ResourceType != f.ResourceType:
				return false
			case f.ResourceID != nil && (l.ResourceID == nil || *l.ResourceID != *f.ResourceID):
				return false
			case f.UserID != nil && (l.UserID == nil || *l.UserID != *f.UserID):
				return false
			}
			return true
		})
		out = paginate(rows, f.Page)
		return nil
	})
	return out, err
}

type uploadRepo struct{ s *Store }

func (r uploadRepo) Create(ctx context.Context, u *models.Upload) error {
	return r.s.with(ctx, func(st *state) error {
		if err := r.s.stamp(ctx, &u.ID, &u.OrgID, &u.CreatedAt); err != nil {
			return err
		}
		st.uploads.insert(*u, st.next())
		return nil
	})
}

func (r uploadRepo) Get(ctx context.Context, id uuid.UUID) (*models.Upload, error) {
	var out models.Upload
	err := r.s.with(ctx, func(st *state) (err error) {
		out, err = st.uploads.get(ctx, id, tenant.ActiveOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r uploadRepo) Attach(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.s.with(ctx, func(st *state) error {
		u, err := st.uploads.get(ctx, id, tenant.ActiveOnly)
		if err != nil {
			return err
		}
		u.AttachedAt = &at
		return st.uploads.replace(ctx, u, tenant.ActiveOnly)
	})
}

func (r uploadRepo) Stale(ctx context.Context, before time.Time) ([]models.Upload, error) {
	var out []models.Upload
	err := r.s.with(ctx, func(st *state) error {
		out = st.uploads.list(ctx, tenant.ActiveOnly, func(u models.Upload) bool {
			return u.AttachedAt == nil && u.CreatedAt.Before(before)
		})
		return nil
	})
	return out, err
}

func (r uploadRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.with(ctx, func(st *state) error {
		return st.uploads.remove(ctx, id)
	})
}
