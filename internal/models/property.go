package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Property struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	OrgID     uuid.UUID  `json:"org_id" db:"org_id"`
	Name      string     `json:"name" db:"name"`
	Address   string     `json:"address" db:"address"`
	Meta      Meta       `json:"meta" db:"meta"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (p Property) OwnerOrgID() uuid.UUID { return p.OrgID }

type Floor struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OrgID      uuid.UUID `json:"org_id" db:"org_id"`
	PropertyID uuid.UUID `json:"property_id" db:"property_id"`
	Name       string    `json:"name" db:"name"`
	Level      int       `json:"level" db:"level"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

func (f Floor) OwnerOrgID() uuid.UUID { return f.OrgID }

type RoomStatus string

const (
	RoomVacant      RoomStatus = "VACANT"
	RoomOccupied    RoomStatus = "OCCUPIED"
	RoomMaintenance RoomStatus = "MAINTENANCE"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomVacant, RoomOccupied, RoomMaintenance:
		return true
	}
	return false
}

type Room struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	OrgID      uuid.UUID       `json:"org_id" db:"org_id"`
	PropertyID uuid.UUID       `json:"property_id" db:"property_id"`
	FloorID    *uuid.UUID      `json:"floor_id,omitempty" db:"floor_id"`
	Code       string          `json:"code" db:"code"`
	Name       string          `json:"name" db:"name"`
	Status     RoomStatus      `json:"status" db:"status"`
	BaseRent   decimal.Decimal `json:"base_rent" db:"base_rent"`
	Capacity   int             `json:"capacity" db:"capacity"`
	Meta       Meta            `json:"meta" db:"meta"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (r Room) OwnerOrgID() uuid.UUID { return r.OrgID }
