package models

import (
	"time"

	"github.com/google/uuid"
)

// Owned is implemented by every tenant-scoped entity.
type Owned interface {
	OwnerOrgID() uuid.UUID
}

type Organization struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Slug      string     `json:"slug" db:"slug"`
	Currency  string     `json:"currency" db:"currency"`
	Timezone  string     `json:"timezone" db:"timezone"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (o Organization) OwnerOrgID() uuid.UUID { return o.ID }

// Location returns the organization's billing timezone, UTC when unset or invalid.
func (o Organization) Location() *time.Location {
	if o.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
