package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac"
	"github.com/nikhilbhutani/rentalcore/internal/store"
)

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

type LogEntry struct {
	// OrgID names the owning organization when the actor is unscoped.
	OrgID        uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      models.Meta
}

// Log records entry for the acting session. It joins the caller's
// transaction when one is open, so a rolled back mutation leaves no trail.
func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	l := &models.AuditLog{
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
	}
	if entry.OrgID != uuid.Nil {
		org := entry.OrgID
		l.OrgID = &org
	}
	if sess := rbac.SessionFrom(ctx); sess != nil {
		uid := sess.UserID()
		l.UserID = &uid
	}
	if err := s.store.Audit().Record(ctx, l); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Transition logs a status change of a state-machine entity.
func (s *Service) Transition(ctx context.Context, resourceType string, orgID, id uuid.UUID, from, to string) error {
	return s.Log(ctx, LogEntry{
		OrgID:        orgID,
		Action:       "status_changed",
		ResourceType: resourceType,
		ResourceID:   &id,
		Details:      models.Meta{"from": from, "to": to},
	})
}

type AuditQuery struct {
	ResourceType string
	ResourceID   *uuid.UUID
	UserID       *uuid.UUID
	Limit        int
	Offset       int
}

func (s *Service) GetAuditLogs(ctx context.Context, q AuditQuery) ([]models.AuditLog, error) {
	logs, err := s.store.Audit().List(ctx, store.AuditFilter{
		ResourceType: q.ResourceType,
		ResourceID:   q.ResourceID,
		UserID:       q.UserID,
		Page:         store.Page{Limit: q.Limit, Offset: q.Offset},
	})
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	return logs, nil
}
