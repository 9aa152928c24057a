package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	OrgID        *uuid.UUID `json:"org_id,omitempty" db:"org_id"`
	UserID       *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Action       string     `json:"action" db:"action"`
	ResourceType string     `json:"resource_type" db:"resource_type"`
	ResourceID   *uuid.UUID `json:"resource_id,omitempty" db:"resource_id"`
	Details      Meta       `json:"details" db:"details"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

func (l AuditLog) OwnerOrgID() uuid.UUID {
	if l.OrgID == nil {
		return uuid.Nil
	}
	return *l.OrgID
}

// Upload is a temporary file awaiting attachment to an entity.
type Upload struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	OrgID        uuid.UUID  `json:"org_id" db:"org_id"`
	Path         string     `json:"path" db:"path"`
	OriginalName string     `json:"original_name" db:"original_name"`
	Size         int64      `json:"size" db:"size"`
	AttachedAt   *time.Time `json:"attached_at,omitempty" db:"attached_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

func (u Upload) OwnerOrgID() uuid.UUID { return u.OrgID }
